package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stablecoin-watch/internal/fetcher"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalizeAggregateKeepsReportedValues(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600))
	resp := fetcher.Response{Aggregate: &fetcher.Aggregate{
		Ask:      decimal.NewNullDecimal(d("1020")),
		TotalAsk: decimal.NewNullDecimal(d("1031.5")),
		Bid:      decimal.NewNullDecimal(d("1000")),
		TotalBid: decimal.NewNullDecimal(d("990.75")),
	}}

	rec, err := Normalize("buenbit", "USDT", resp, at)
	require.NoError(t, err)
	require.Equal(t, time.UTC, rec.Time.Location())
	require.True(t, rec.Time.Equal(at))
	require.True(t, rec.Bid.Equal(d("1000")))
	require.True(t, rec.TotalBid.Equal(d("990.75")))
	require.True(t, rec.Ask.Equal(d("1020")))
	require.True(t, rec.TotalAsk.Equal(d("1031.5")))
}

func TestNormalizeAggregateWithoutTotals(t *testing.T) {
	resp := fetcher.Response{Aggregate: &fetcher.Aggregate{
		Ask: decimal.NewNullDecimal(d("1020")),
		Bid: decimal.NewNullDecimal(d("1000")),
	}}

	rec, err := Normalize("lemoncash", "USDT", resp, time.Now())
	require.NoError(t, err)
	require.True(t, rec.TotalBid.Equal(rec.Bid))
	require.True(t, rec.TotalAsk.Equal(rec.Ask))
}

func TestNormalizeOffersAveragesAndPicksBest(t *testing.T) {
	resp := fetcher.Response{Offers: &fetcher.OfferBook{
		Bids: []decimal.Decimal{d("1000"), d("1010"), d("990"), d("1004")},
		Asks: []decimal.Decimal{d("1030"), d("1020"), d("1025")},
	}}

	rec, err := Normalize("binance", "USDT", resp, time.Now())
	require.NoError(t, err)
	require.True(t, rec.Bid.Equal(d("1010")), "best bid is the highest offer, got %s", rec.Bid)
	require.True(t, rec.TotalBid.Equal(d("1001")), "mean of bids, got %s", rec.TotalBid)
	require.True(t, rec.Ask.Equal(d("1020")), "best ask is the lowest offer, got %s", rec.Ask)
	require.True(t, rec.TotalAsk.Equal(d("1025")), "mean of asks, got %s", rec.TotalAsk)
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := map[string]fetcher.Response{
		"empty":         {},
		"missing bid":   {Aggregate: &fetcher.Aggregate{Ask: decimal.NewNullDecimal(d("1"))}},
		"zero bid":      {Aggregate: &fetcher.Aggregate{Bid: decimal.NewNullDecimal(decimal.Zero), Ask: decimal.NewNullDecimal(d("1"))}},
		"negative tot":  {Aggregate: &fetcher.Aggregate{Bid: decimal.NewNullDecimal(d("1")), TotalBid: decimal.NewNullDecimal(d("-1")), Ask: decimal.NewNullDecimal(d("1"))}},
		"no bid offers": {Offers: &fetcher.OfferBook{Asks: []decimal.Decimal{d("1")}}},
		"no ask offers": {Offers: &fetcher.OfferBook{Bids: []decimal.Decimal{d("1")}}},
		"zero offer":    {Offers: &fetcher.OfferBook{Bids: []decimal.Decimal{d("1"), decimal.Zero}, Asks: []decimal.Decimal{d("1")}}},
		"both shapes": {
			Aggregate: &fetcher.Aggregate{Bid: decimal.NewNullDecimal(d("1")), Ask: decimal.NewNullDecimal(d("1"))},
			Offers:    &fetcher.OfferBook{Bids: []decimal.Decimal{d("1")}, Asks: []decimal.Decimal{d("1")}},
		},
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize("x", "USDT", resp, time.Now())
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}
