package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRecord is one normalized price observation for a single exchange.
type QuoteRecord struct {
	Time     time.Time
	Exchange string
	Coin     string
	Ask      decimal.Decimal
	TotalAsk decimal.Decimal
	Bid      decimal.Decimal
	TotalBid decimal.Decimal
}

// Validate reports whether the record can be persisted.
func (r QuoteRecord) Validate() error {
	if strings.TrimSpace(r.Exchange) == "" {
		return errors.New("exchange is empty")
	}
	if strings.TrimSpace(r.Coin) == "" {
		return errors.New("coin is empty")
	}
	if r.Time.IsZero() {
		return errors.New("time is zero")
	}
	prices := map[string]decimal.Decimal{
		"ask":       r.Ask,
		"total_ask": r.TotalAsk,
		"bid":       r.Bid,
		"total_bid": r.TotalBid,
	}
	for name, price := range prices {
		if price.IsNegative() {
			return fmt.Errorf("%s is negative: %s", name, price.String())
		}
	}
	return nil
}

// EpochSeconds converts a timestamp into the fractional epoch seconds stored in the time column.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds, truncated to microseconds.
func FromEpochSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	micros := math.Round(frac * 1e6)
	return time.Unix(int64(whole), int64(micros)*int64(time.Microsecond)).UTC()
}
