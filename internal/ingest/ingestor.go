package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stablecoin-watch/internal/fetcher"
	"stablecoin-watch/internal/storage"
)

// ErrNoQuotes is returned when every source of a cycle failed.
var ErrNoQuotes = errors.New("no quotes collected")

// Options tune an Ingestor.
type Options struct {
	Coin        string
	Timeout     time.Duration
	Concurrency int
	Clock       func() time.Time
}

// Ingestor collects one quote per source and appends them as one batch.
type Ingestor struct {
	sources []fetcher.Source
	store   storage.BatchAppender
	opts    Options
	logger  zerolog.Logger
}

// New constructs an Ingestor.
func New(sources []fetcher.Source, store storage.BatchAppender, opts Options, logger zerolog.Logger) *Ingestor {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(sources)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Ingestor{
		sources: sources,
		store:   store,
		opts:    opts,
		logger:  logger.With().Str("component", "ingestor").Logger(),
	}
}

// FetchAndNormalize queries one source under the per-source timeout.
// The record is stamped with the ingestor clock read when the call starts.
func (i *Ingestor) FetchAndNormalize(ctx context.Context, src fetcher.Source) (storage.QuoteRecord, error) {
	at := i.opts.Clock()

	fetchCtx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
	defer cancel()

	resp, err := src.Fetch(fetchCtx)
	if err != nil {
		return storage.QuoteRecord{}, &fetcher.SourceError{Exchange: src.Exchange(), Err: err}
	}

	rec, err := Normalize(src.Exchange(), i.opts.Coin, resp, at)
	if err != nil {
		return storage.QuoteRecord{}, &fetcher.SourceError{Exchange: src.Exchange(), Err: err}
	}
	return rec, nil
}

// IngestCycle fetches every source concurrently, drops the failures, and appends the rest at once.
func (i *Ingestor) IngestCycle(ctx context.Context) (int, error) {
	if len(i.sources) == 0 {
		return 0, fmt.Errorf("%w: no sources configured", ErrNoQuotes)
	}

	records := make([]storage.QuoteRecord, len(i.sources))
	failures := make([]error, len(i.sources))

	var g errgroup.Group
	g.SetLimit(i.opts.Concurrency)
	for idx, src := range i.sources {
		idx, src := idx, src
		g.Go(func() error {
			rec, err := i.FetchAndNormalize(ctx, src)
			if err != nil {
				failures[idx] = err
				return nil
			}
			records[idx] = rec
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]storage.QuoteRecord, 0, len(i.sources))
	var sourceErrs []error
	for idx, err := range failures {
		if err != nil {
			i.logger.Warn().Err(err).Str("exchange", i.sources[idx].Exchange()).Msg("source failed; omitted from batch")
			sourceErrs = append(sourceErrs, err)
			continue
		}
		batch = append(batch, records[idx])
	}

	if len(batch) == 0 {
		return 0, errors.Join(append([]error{ErrNoQuotes}, sourceErrs...)...)
	}

	if err := i.store.AppendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("append batch: %w", err)
	}

	i.logger.Info().
		Int("written", len(batch)).
		Int("failed", len(sourceErrs)).
		Msg("ingestion cycle complete")
	return len(batch), nil
}
