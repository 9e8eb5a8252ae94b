package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stablecoin-watch/internal/ingest"
	"stablecoin-watch/internal/service"
	"stablecoin-watch/internal/storage"
)

// Ingest runs one collection cycle against every configured source.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sources, err := a.newSources()
	if err != nil {
		return err
	}

	var (
		appender storage.BatchAppender
		locker   storage.AdvisoryLocker
		preview  *storage.MemoryStore
	)
	if opts.DryRun {
		a.Logger.Warn().Msg("ingest dry-run：不会写入数据库")
		preview = storage.NewMemoryStore()
		appender = preview
	} else {
		store, closeStore, err := a.requireStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if opts.CreateSchema {
			if err := store.CreateSchema(ctx); err != nil {
				return err
			}
			a.Logger.Info().Msg("timeseries schema ensured")
		}
		appender = store
		locker = store
	}

	ic := a.Config.Ingest
	ingestor := ingest.New(sources, appender, ingest.Options{
		Coin:        ic.Coin,
		Timeout:     ic.RequestTimeout,
		Concurrency: ic.Concurrency,
	}, a.Logger)

	job := service.NewIngestJob(ingestor, locker, ic.LockKey, a.Logger)
	written, err := job.Run(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("written", written).Int("sources", len(sources)).Msg("ingestion finished")

	if preview != nil {
		records, err := preview.RecentWindow(ctx, len(sources))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stdout, "no quotes collected")
			return nil
		}
		return writeQuoteTable(os.Stdout, records)
	}
	return nil
}
