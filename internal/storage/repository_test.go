package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSchema = "stablewatch_test"

// setupPool connects to TEST_DATABASE_URL and isolates the test in its own schema.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+testSchema)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, `DROP TABLE IF EXISTS `+testSchema+`.timeseries`)
	require.NoError(t, err)
	admin.Close()

	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = testSchema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	pool := setupPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.CreateSchema(ctx), "schema creation must be idempotent")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := []QuoteRecord{
		{Time: base, Exchange: "buenbit", Coin: "USDT", Ask: decimal.RequireFromString("1010.5"), TotalAsk: decimal.RequireFromString("1012"), Bid: decimal.RequireFromString("990.25"), TotalBid: decimal.RequireFromString("989")},
		{Time: base, Exchange: "belo", Coin: "USDT", Ask: decimal.RequireFromString("1011"), TotalAsk: decimal.RequireFromString("1011"), Bid: decimal.RequireFromString("995"), TotalBid: decimal.RequireFromString("995")},
	}
	second := []QuoteRecord{
		{Time: base.Add(time.Minute), Exchange: "buenbit", Coin: "USDT", Ask: decimal.RequireFromString("1009"), TotalAsk: decimal.RequireFromString("1010"), Bid: decimal.RequireFromString("991"), TotalBid: decimal.RequireFromString("990")},
	}
	require.NoError(t, store.AppendBatch(ctx, first))
	require.NoError(t, store.AppendBatch(ctx, second))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	window, err := store.RecentWindow(ctx, 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.Equal(t, "buenbit", window[0].Exchange)
	require.True(t, window[0].Time.Equal(base.Add(time.Minute)))
	require.Equal(t, "belo", window[1].Exchange, "ties are broken by row id descending")
	require.True(t, window[0].TotalBid.Equal(decimal.RequireFromString("990")))

	best, ok, err := store.MaxTotalBid(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "belo", best.Exchange)

	between, err := store.ListBetween(ctx, base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, between, 2)
}

func TestPostgresStoreRejectsWholeBatch(t *testing.T) {
	pool := setupPool(t)
	store := NewPostgresStore(pool)
	ctx := context.Background()
	require.NoError(t, store.CreateSchema(ctx))

	ok := QuoteRecord{Time: time.Now(), Exchange: "a", Coin: "USDT", Bid: decimal.NewFromInt(1), TotalBid: decimal.NewFromInt(1)}
	// NUMERIC(20,8) overflows, so the failure happens inside the transaction
	overflow := ok
	overflow.Exchange = "b"
	overflow.TotalBid = decimal.RequireFromString("1e20")

	err := store.AppendBatch(ctx, []QuoteRecord{ok, overflow})
	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestPostgresStoreIncompatibleSchema(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	_, err := pool.Exec(ctx, `CREATE TABLE timeseries (row_id BIGSERIAL PRIMARY KEY, time DOUBLE PRECISION)`)
	require.NoError(t, err)

	err = NewPostgresStore(pool).CreateSchema(ctx)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestPostgresStoreNotConfigured(t *testing.T) {
	var store *PostgresStore
	_, err := store.RecentWindow(context.Background(), 10)
	require.ErrorIs(t, err, ErrNotConfigured)

	var schemaErr *SchemaError
	require.ErrorAs(t, store.CreateSchema(context.Background()), &schemaErr)
}
