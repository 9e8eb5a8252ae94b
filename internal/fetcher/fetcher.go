package fetcher

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Source fetches the current quote of one exchange.
type Source interface {
	Exchange() string
	Fetch(ctx context.Context) (Response, error)
}

// Response is the raw, not yet normalized answer of a Source.
// Exactly one of Aggregate or Offers is set.
type Response struct {
	Aggregate *Aggregate
	Offers    *OfferBook
}

// Aggregate is a pre-aggregated quote. Totals include fees or depth and may be absent.
type Aggregate struct {
	Ask      decimal.NullDecimal `json:"ask"`
	TotalAsk decimal.NullDecimal `json:"totalAsk"`
	Bid      decimal.NullDecimal `json:"bid"`
	TotalBid decimal.NullDecimal `json:"totalBid"`
}

// OfferBook holds individual offer prices on each side of a market.
type OfferBook struct {
	Bids []decimal.Decimal
	Asks []decimal.Decimal
}

// SourceError wraps a failure of a single source.
type SourceError struct {
	Exchange string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Exchange, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
