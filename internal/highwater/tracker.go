// Package highwater tracks the best aggregate bid ever observed.
//
// A Tracker is unusable until Load. After that it only replaces its state
// once a strictly higher TotalBid has been written to its Persister, and
// CheckAndUpdate reports true only after that write succeeded.
package highwater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stablecoin-watch/internal/storage"
)

// ErrNotLoaded is returned when the tracker is used before Load.
var ErrNotLoaded = errors.New("highwater: tracker not loaded")

// State is the best observation so far and where it came from.
type State struct {
	TotalBid decimal.Decimal
	Exchange string
	Coin     string
	Time     time.Time
}

// FromQuote builds a candidate state from a stored quote.
func FromQuote(rec storage.QuoteRecord) State {
	return State{
		TotalBid: rec.TotalBid,
		Exchange: rec.Exchange,
		Coin:     rec.Coin,
		Time:     rec.Time,
	}
}

// PersistError reports a new maximum that could not be stored. The tracker state is unchanged.
type PersistError struct {
	Candidate State
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist high-water mark %s (%s): %v", e.Candidate.TotalBid.String(), e.Candidate.Exchange, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Tracker owns the process-wide high-water state.
type Tracker struct {
	mu        sync.Mutex
	persister Persister
	state     State
	loaded    bool
	logger    zerolog.Logger
}

// NewTracker constructs an uninitialized tracker.
func NewTracker(persister Persister, logger zerolog.Logger) *Tracker {
	return &Tracker{
		persister: persister,
		logger:    logger.With().Str("component", "highwater").Logger(),
	}
}

// Load reads the persisted state, falling back to a zero baseline on cold start.
func (t *Tracker) Load(ctx context.Context) error {
	state, found, err := t.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load high-water state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !found {
		state = State{TotalBid: decimal.Zero}
		t.logger.Info().Msg("no persisted high-water mark; starting from zero")
	} else {
		t.logger.Info().
			Str("total_bid", state.TotalBid.String()).
			Str("exchange", state.Exchange).
			Time("observed_at", state.Time).
			Msg("high-water mark loaded")
	}
	t.state = state
	t.loaded = true
	return nil
}

// Current returns a copy of the in-memory state.
func (t *Tracker) Current() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		return State{}, ErrNotLoaded
	}
	return t.state, nil
}

// CheckAndUpdate records candidate if its TotalBid is strictly greater than the
// current mark and reports whether it did. The new mark is durable before true is returned.
func (t *Tracker) CheckAndUpdate(ctx context.Context, candidate State) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return false, ErrNotLoaded
	}
	if !candidate.TotalBid.GreaterThan(t.state.TotalBid) {
		return false, nil
	}

	if err := t.persister.Save(ctx, candidate); err != nil {
		return false, &PersistError{Candidate: candidate, Err: err}
	}

	previous := t.state
	t.state = candidate
	t.logger.Info().
		Str("previous", previous.TotalBid.String()).
		Str("total_bid", candidate.TotalBid.String()).
		Str("exchange", candidate.Exchange).
		Msg("new high-water mark")
	return true, nil
}

// Seed overwrites the mark unconditionally, e.g. when rebuilding it from history.
func (t *Tracker) Seed(ctx context.Context, state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.persister.Save(ctx, state); err != nil {
		return &PersistError{Candidate: state, Err: err}
	}
	t.state = state
	t.loaded = true
	return nil
}
