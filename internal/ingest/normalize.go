package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stablecoin-watch/internal/fetcher"
	"stablecoin-watch/internal/storage"
)

// ErrMalformed marks a response that cannot be turned into a QuoteRecord.
var ErrMalformed = errors.New("malformed quote")

// Normalize maps a raw source response onto a QuoteRecord stamped with at.
func Normalize(exchange, coin string, resp fetcher.Response, at time.Time) (storage.QuoteRecord, error) {
	rec := storage.QuoteRecord{
		Time:     at.UTC(),
		Exchange: exchange,
		Coin:     coin,
	}

	switch {
	case resp.Aggregate != nil && resp.Offers != nil:
		return storage.QuoteRecord{}, fmt.Errorf("%w: both aggregate and offers present", ErrMalformed)
	case resp.Aggregate != nil:
		bid, totalBid, err := aggregateSide("bid", resp.Aggregate.Bid, resp.Aggregate.TotalBid)
		if err != nil {
			return storage.QuoteRecord{}, err
		}
		ask, totalAsk, err := aggregateSide("ask", resp.Aggregate.Ask, resp.Aggregate.TotalAsk)
		if err != nil {
			return storage.QuoteRecord{}, err
		}
		rec.Bid, rec.TotalBid = bid, totalBid
		rec.Ask, rec.TotalAsk = ask, totalAsk
	case resp.Offers != nil:
		bid, totalBid, err := offerSide("bid", resp.Offers.Bids, true)
		if err != nil {
			return storage.QuoteRecord{}, err
		}
		ask, totalAsk, err := offerSide("ask", resp.Offers.Asks, false)
		if err != nil {
			return storage.QuoteRecord{}, err
		}
		rec.Bid, rec.TotalBid = bid, totalBid
		rec.Ask, rec.TotalAsk = ask, totalAsk
	default:
		return storage.QuoteRecord{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	return rec, nil
}

// aggregateSide keeps reported values; a missing total falls back to the top-of-book price.
func aggregateSide(side string, price, total decimal.NullDecimal) (decimal.Decimal, decimal.Decimal, error) {
	if !price.Valid {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: %s missing", ErrMalformed, side)
	}
	if !price.Decimal.IsPositive() {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: %s not positive (%s)", ErrMalformed, side, price.Decimal)
	}
	if !total.Valid {
		return price.Decimal, price.Decimal, nil
	}
	if !total.Decimal.IsPositive() {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: total %s not positive (%s)", ErrMalformed, side, total.Decimal)
	}
	return price.Decimal, total.Decimal, nil
}

// offerSide returns the best single offer and the arithmetic mean of all offers.
// For bids the best offer is the highest price, for asks the lowest.
func offerSide(side string, offers []decimal.Decimal, highestWins bool) (decimal.Decimal, decimal.Decimal, error) {
	if len(offers) == 0 {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no %s offers", ErrMalformed, side)
	}

	best := offers[0]
	sum := decimal.Zero
	for i, price := range offers {
		if !price.IsPositive() {
			return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: %s offer %d not positive (%s)", ErrMalformed, side, i, price)
		}
		sum = sum.Add(price)
		if (highestWins && price.GreaterThan(best)) || (!highestWins && price.LessThan(best)) {
			best = price
		}
	}

	mean := sum.Div(decimal.NewFromInt(int64(len(offers))))
	return best, mean, nil
}
