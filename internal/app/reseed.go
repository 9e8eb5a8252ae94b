package app

import (
	"context"
	"errors"

	"stablecoin-watch/internal/highwater"
)

// Reseed rebuilds the high-water file from the best quote ever stored.
func (a *App) Reseed(ctx context.Context, opts ReseedOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	best, found, err := store.MaxTotalBid(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.New("timeseries 为空，无法重建最高值")
	}

	persister := highwater.NewFilePersister(a.Config.HighWater.Path)
	state := highwater.FromQuote(best)
	logEvent := a.Logger.Info().
		Str("exchange", state.Exchange).
		Str("total_bid", state.TotalBid.String()).
		Time("observed_at", state.Time).
		Str("path", persister.Path())

	if opts.DryRun {
		logEvent.Msg("reseed dry-run：不会写入文件")
		return nil
	}

	tracker := highwater.NewTracker(persister, a.Logger)
	if err := tracker.Seed(ctx, state); err != nil {
		return err
	}
	logEvent.Msg("high-water mark reseeded")
	return nil
}
