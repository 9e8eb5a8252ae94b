package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps quotes in process. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    []memoryRow
	nextRow int64
}

type memoryRow struct {
	id  int64
	rec QuoteRecord
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make([]memoryRow, 0)}
}

// CreateSchema is a no-op for the in-memory store.
func (m *MemoryStore) CreateSchema(ctx context.Context) error {
	return nil
}

// AppendBatch appends every record or none of them.
func (m *MemoryStore) AppendBatch(ctx context.Context, records []QuoteRecord) error {
	if err := validateBatch(records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "append batch", Index: -1, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.nextRow++
		m.rows = append(m.rows, memoryRow{id: m.nextRow, rec: rec})
	}
	return nil
}

// RecentWindow returns up to limit records ordered by time then row id, newest first.
func (m *MemoryStore) RecentWindow(ctx context.Context, limit int) ([]QuoteRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows := m.snapshot()
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].rec.Time.Equal(rows[j].rec.Time) {
			return rows[i].rec.Time.After(rows[j].rec.Time)
		}
		return rows[i].id > rows[j].id
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return records(rows), nil
}

// ListBetween lists records within [from, to) in ascending time order.
func (m *MemoryStore) ListBetween(ctx context.Context, from, to time.Time) ([]QuoteRecord, error) {
	rows := m.snapshot()
	filtered := rows[:0]
	for _, row := range rows {
		if !row.rec.Time.Before(from) && row.rec.Time.Before(to) {
			filtered = append(filtered, row)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].rec.Time.Equal(filtered[j].rec.Time) {
			return filtered[i].rec.Time.Before(filtered[j].rec.Time)
		}
		return filtered[i].id < filtered[j].id
	})
	return records(filtered), nil
}

// MaxTotalBid returns the earliest row carrying the highest total bid.
func (m *MemoryStore) MaxTotalBid(ctx context.Context) (QuoteRecord, bool, error) {
	rows := m.snapshot()
	if len(rows) == 0 {
		return QuoteRecord{}, false, nil
	}

	best := rows[0]
	for _, row := range rows[1:] {
		cmp := row.rec.TotalBid.Cmp(best.rec.TotalBid)
		if cmp > 0 || (cmp == 0 && row.rec.Time.Before(best.rec.Time)) {
			best = row
		}
	}
	return best.rec, true, nil
}

// Count counts stored quotes.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rows)), nil
}

func (m *MemoryStore) snapshot() []memoryRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]memoryRow, len(m.rows))
	copy(rows, m.rows)
	return rows
}

func records(rows []memoryRow) []QuoteRecord {
	out := make([]QuoteRecord, len(rows))
	for i, row := range rows {
		out[i] = row.rec
	}
	return out
}

var _ TimeSeriesStore = (*MemoryStore)(nil)
