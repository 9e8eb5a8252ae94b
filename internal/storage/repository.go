package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	createTimeseriesSQL = `CREATE TABLE IF NOT EXISTS timeseries (
        row_id    BIGSERIAL PRIMARY KEY,
        time      DOUBLE PRECISION NOT NULL,
        exchange  TEXT NOT NULL,
        coin      TEXT NOT NULL,
        ask       NUMERIC(20,8) NOT NULL,
        total_ask NUMERIC(20,8) NOT NULL,
        bid       NUMERIC(20,8) NOT NULL,
        total_bid NUMERIC(20,8) NOT NULL
    );`

	createTimeseriesIndexSQL = `CREATE INDEX IF NOT EXISTS timeseries_time_idx
    ON timeseries (time DESC, row_id DESC);`

	listColumnsSQL = `SELECT column_name
    FROM information_schema.columns
    WHERE table_schema = current_schema()
      AND table_name = 'timeseries';`

	insertQuoteSQL = `INSERT INTO timeseries (
        time,
        exchange,
        coin,
        ask,
        total_ask,
        bid,
        total_bid
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	recentWindowSQL = `SELECT
        time,
        exchange,
        coin,
        ask::text,
        total_ask::text,
        bid::text,
        total_bid::text
    FROM timeseries
    ORDER BY time DESC, row_id DESC
    LIMIT $1;`

	listBetweenSQL = `SELECT
        time,
        exchange,
        coin,
        ask::text,
        total_ask::text,
        bid::text,
        total_bid::text
    FROM timeseries
    WHERE time >= $1
      AND time < $2
    ORDER BY time, row_id;`

	maxTotalBidSQL = `SELECT
        time,
        exchange,
        coin,
        ask::text,
        total_ask::text,
        bid::text,
        total_bid::text
    FROM timeseries
    ORDER BY total_bid DESC, time, row_id
    LIMIT 1;`

	countQuotesSQL = `SELECT COUNT(*) FROM timeseries;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

var requiredColumns = []string{"row_id", "time", "exchange", "coin", "ask", "total_ask", "bid", "total_bid"}

// WindowReader serves the most recent observations.
type WindowReader interface {
	RecentWindow(ctx context.Context, limit int) ([]QuoteRecord, error)
}

// BatchAppender appends observations atomically.
type BatchAppender interface {
	AppendBatch(ctx context.Context, records []QuoteRecord) error
}

// TimeSeriesStore is the append-only quote history.
type TimeSeriesStore interface {
	WindowReader
	BatchAppender
	CreateSchema(ctx context.Context) error
	ListBetween(ctx context.Context, from, to time.Time) ([]QuoteRecord, error)
	MaxTotalBid(ctx context.Context) (QuoteRecord, bool, error)
	Count(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// PostgresStore persists quotes in the timeseries table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also goes away with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// CreateSchema creates the timeseries table when missing and checks its columns.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return &SchemaError{Reason: "store not configured", Err: err}
	}

	if _, err := pool.Exec(ctx, createTimeseriesSQL); err != nil {
		return &SchemaError{Reason: "create table", Err: err}
	}
	if _, err := pool.Exec(ctx, createTimeseriesIndexSQL); err != nil {
		return &SchemaError{Reason: "create index", Err: err}
	}

	rows, err := pool.Query(ctx, listColumnsSQL)
	if err != nil {
		return &SchemaError{Reason: "inspect columns", Err: err}
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return &SchemaError{Reason: "inspect columns", Err: err}
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return &SchemaError{Reason: "inspect columns", Err: err}
	}

	for _, col := range requiredColumns {
		if !present[col] {
			return &SchemaError{Reason: fmt.Sprintf("existing timeseries table lacks column %q", col)}
		}
	}
	return nil
}

// AppendBatch inserts all records in one transaction.
func (s *PostgresStore) AppendBatch(ctx context.Context, records []QuoteRecord) error {
	if len(records) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return &PersistenceError{Op: "append batch", Index: -1, Err: err}
	}
	if err := validateBatch(records); err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &PersistenceError{Op: "begin", Index: -1, Err: err}
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertQuoteSQL,
			EpochSeconds(rec.Time),
			rec.Exchange,
			rec.Coin,
			rec.Ask.String(),
			rec.TotalAsk.String(),
			rec.Bid.String(),
			rec.TotalBid.String(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return &PersistenceError{Op: "insert", Index: i, Err: execErr}
		}
	}
	if err := results.Close(); err != nil {
		return &PersistenceError{Op: "insert", Index: -1, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit", Index: -1, Err: err}
	}
	return nil
}

// RecentWindow lists up to limit records, newest first.
func (s *PostgresStore) RecentWindow(ctx context.Context, limit int) ([]QuoteRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentWindowSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("recent window: %w", queryErr)
	}
	defer rows.Close()

	return collectQuotes(rows, limit)
}

// ListBetween lists records within [from, to) in ascending time order.
func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]QuoteRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBetweenSQL, EpochSeconds(from), EpochSeconds(to))
	if queryErr != nil {
		return nil, fmt.Errorf("list quotes between: %w", queryErr)
	}
	defer rows.Close()

	return collectQuotes(rows, 0)
}

// MaxTotalBid returns the best total bid ever stored. The bool is false on an empty table.
func (s *PostgresStore) MaxTotalBid(ctx context.Context) (QuoteRecord, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return QuoteRecord{}, false, err
	}

	rec, err := scanQuote(pool.QueryRow(ctx, maxTotalBidSQL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuoteRecord{}, false, nil
		}
		return QuoteRecord{}, false, fmt.Errorf("max total bid: %w", err)
	}
	return rec, true, nil
}

// Count counts stored quotes.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countQuotesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count quotes: %w", scanErr)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func collectQuotes(rows pgx.Rows, capacity int) ([]QuoteRecord, error) {
	records := make([]QuoteRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanQuote(row scannable) (QuoteRecord, error) {
	var (
		epoch       float64
		exchange    string
		coin        string
		askStr      string
		totalAskStr string
		bidStr      string
		totalBidStr string
	)

	if err := row.Scan(&epoch, &exchange, &coin, &askStr, &totalAskStr, &bidStr, &totalBidStr); err != nil {
		return QuoteRecord{}, err
	}

	prices := make([]decimal.Decimal, 4)
	for i, raw := range []string{askStr, totalAskStr, bidStr, totalBidStr} {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return QuoteRecord{}, fmt.Errorf("parse price %q: %w", raw, err)
		}
		prices[i] = parsed
	}

	return QuoteRecord{
		Time:     FromEpochSeconds(epoch),
		Exchange: exchange,
		Coin:     coin,
		Ask:      prices[0],
		TotalAsk: prices[1],
		Bid:      prices[2],
		TotalBid: prices[3],
	}, nil
}

var (
	_ TimeSeriesStore = (*PostgresStore)(nil)
	_ AdvisoryLocker  = (*PostgresStore)(nil)
)
