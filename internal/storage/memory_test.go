package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func quote(exchange string, unix int64, totalBid int64) QuoteRecord {
	price := decimal.NewFromInt(totalBid)
	return QuoteRecord{
		Time:     time.Unix(unix, 0).UTC(),
		Exchange: exchange,
		Coin:     "USDT",
		Ask:      price.Add(decimal.NewFromInt(10)),
		TotalAsk: price.Add(decimal.NewFromInt(12)),
		Bid:      price,
		TotalBid: price,
	}
}

func TestMemoryRecentWindowReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var total int
	for batch := 0; batch < 5; batch++ {
		recs := make([]QuoteRecord, 0, 7)
		for i := 0; i < 7; i++ {
			recs = append(recs, quote(fmt.Sprintf("ex%d", i), int64(1000+batch*60), int64(1000+i)))
		}
		require.NoError(t, store.AppendBatch(ctx, recs))
		total += len(recs)
	}

	window, err := store.RecentWindow(ctx, 10)
	require.NoError(t, err)
	require.Len(t, window, 10)

	// newest batch first, ties broken by descending insertion order
	for i := 0; i < 7; i++ {
		require.Equal(t, int64(1240), window[i].Time.Unix())
		require.Equal(t, fmt.Sprintf("ex%d", 6-i), window[i].Exchange)
	}
	for i := 7; i < 10; i++ {
		require.Equal(t, int64(1180), window[i].Time.Unix())
	}

	all, err := store.RecentWindow(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, all, total)
}

func TestMemoryRecentWindowSortsOutOfOrderInserts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.AppendBatch(ctx, []QuoteRecord{quote("late", 300, 1)}))
	require.NoError(t, store.AppendBatch(ctx, []QuoteRecord{quote("early", 100, 1)}))
	require.NoError(t, store.AppendBatch(ctx, []QuoteRecord{quote("middle", 200, 1)}))

	window, err := store.RecentWindow(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"late", "middle"}, []string{window[0].Exchange, window[1].Exchange})
}

func TestMemoryRecentWindowRejectsNonPositiveLimit(t *testing.T) {
	_, err := NewMemoryStore().RecentWindow(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestMemoryAppendBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	bad := quote("", 100, 5)
	err := store.AppendBatch(ctx, []QuoteRecord{quote("a", 100, 1), bad, quote("b", 100, 2)})

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	require.Equal(t, 1, persistErr.Index)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryAppendBatchRejectsNegativePrice(t *testing.T) {
	rec := quote("a", 100, 5)
	rec.TotalAsk = decimal.NewFromInt(-1)

	err := NewMemoryStore().AppendBatch(context.Background(), []QuoteRecord{rec})
	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
}

func TestMemoryListBetweenAndMax(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.AppendBatch(ctx, []QuoteRecord{
		quote("a", 100, 5),
		quote("b", 200, 9),
		quote("c", 300, 9),
		quote("d", 400, 1),
	}))

	between, err := store.ListBetween(ctx, time.Unix(200, 0), time.Unix(400, 0))
	require.NoError(t, err)
	require.Len(t, between, 2)
	require.Equal(t, "b", between[0].Exchange)
	require.Equal(t, "c", between[1].Exchange)

	best, ok, err := store.MaxTotalBid(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", best.Exchange)

	_, ok, err = NewMemoryStore().MaxTotalBid(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 15, 250_000_000, time.UTC)
	back := FromEpochSeconds(EpochSeconds(ts))
	require.True(t, ts.Equal(back), "want %s got %s", ts, back)
}
