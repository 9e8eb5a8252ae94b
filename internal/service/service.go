package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stablecoin-watch/internal/alerting"
	"stablecoin-watch/internal/highwater"
	"stablecoin-watch/internal/leaderboard"
	"stablecoin-watch/internal/scheduler"
	"stablecoin-watch/internal/storage"
)

// Options tune a broadcast cycle.
type Options struct {
	WindowSize int
	TopK       int
	Freshness  time.Duration
	Unit       string
}

// Broadcaster reads the recent window, maintains the high-water mark, and publishes the leaderboard.
type Broadcaster struct {
	scheduler *scheduler.Scheduler
	store     storage.WindowReader
	tracker   *highwater.Tracker
	sink      alerting.Sink
	opts      Options
	logger    zerolog.Logger
}

// NewBroadcaster constructs the broadcast loop. The tracker must already be loaded.
func NewBroadcaster(sched *scheduler.Scheduler, store storage.WindowReader, tracker *highwater.Tracker, sink alerting.Sink, opts Options, logger zerolog.Logger) *Broadcaster {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 100
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Freshness <= 0 {
		opts.Freshness = 2 * time.Minute
	}
	return &Broadcaster{
		scheduler: sched,
		store:     store,
		tracker:   tracker,
		sink:      sink,
		opts:      opts,
		logger:    logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Run drives Cycle from the scheduler until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return b.scheduler.Run(ctx, b.Cycle)
}

// Cycle runs one broadcast pass. Step failures are joined into the returned error;
// later steps still run when they do not depend on the failed one.
func (b *Broadcaster) Cycle(ctx context.Context, tick time.Time) error {
	window, err := b.store.RecentWindow(ctx, b.opts.WindowSize)
	if err != nil {
		return fmt.Errorf("read recent window: %w", err)
	}
	if len(window) == 0 {
		b.logger.Warn().Time("tick", tick).Msg("no quotes stored yet; skipping cycle")
		return nil
	}

	var errs []error
	if err := b.checkHighWater(ctx, window); err != nil {
		errs = append(errs, err)
	}
	if err := b.publishLeaderboard(ctx, window); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Broadcaster) checkHighWater(ctx context.Context, window []storage.QuoteRecord) error {
	best, ok := leaderboard.Best(window)
	if !ok {
		return nil
	}

	isNew, err := b.tracker.CheckAndUpdate(ctx, highwater.FromQuote(best))
	if err != nil {
		b.logger.Error().Err(err).Str("exchange", best.Exchange).Msg("high-water update failed; alert suppressed")
		return err
	}
	if !isNew {
		return nil
	}

	msg := alerting.HighWaterMessage(best.Exchange, best.TotalBid, b.opts.Unit)
	if err := b.sink.Send(ctx, msg); err != nil {
		b.logger.Error().Err(err).Str("exchange", best.Exchange).Msg("failed to send high-water alert")
		return fmt.Errorf("send high-water alert: %w", err)
	}
	return nil
}

func (b *Broadcaster) publishLeaderboard(ctx context.Context, window []storage.QuoteRecord) error {
	now := leaderboard.Newest(window)
	entries, err := leaderboard.RequireTopK(window, b.opts.TopK, b.opts.Freshness, now)
	if err != nil {
		b.logger.Warn().Err(err).Time("newest", now).Msg("leaderboard empty; nothing to send")
		return nil
	}

	if err := b.sink.Send(ctx, leaderboard.Render(entries, b.opts.Unit)); err != nil {
		b.logger.Error().Err(err).Msg("failed to send leaderboard")
		return fmt.Errorf("send leaderboard: %w", err)
	}
	b.logger.Info().Int("entries", len(entries)).Str("leader", entries[0].Exchange).Msg("leaderboard sent")
	return nil
}
