package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"stablecoin-watch/internal/alerting"
	"stablecoin-watch/internal/config"
	"stablecoin-watch/internal/fetcher"
	"stablecoin-watch/internal/highwater"
	"stablecoin-watch/internal/scheduler"
	"stablecoin-watch/internal/secrets"
	"stablecoin-watch/internal/service"
	"stablecoin-watch/internal/storage"
)

type secretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	secrets secretResolver
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSources() ([]fetcher.Source, error) {
	ic := a.Config.Ingest
	opts := fetcher.HTTPOptions{
		BaseURL:   ic.BaseURL,
		Timeout:   ic.RequestTimeout,
		UserAgent: ic.UserAgent,
	}

	sources := make([]fetcher.Source, 0, len(ic.Sources))
	for _, sc := range ic.Sources {
		switch sc.Kind {
		case config.SourceKindAggregate:
			sources = append(sources, fetcher.NewAggregateSource(sc.ExchangeName(), sc.Path, opts, a.Logger))
		case config.SourceKindP2P:
			sources = append(sources, fetcher.NewP2PSource(sc.ExchangeName(), sc.BidPath, sc.AskPath, opts, a.Logger))
		default:
			return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("ingest.sources 为空，没有可采集的交易所")
	}
	return sources, nil
}

func (a *App) newSink(ctx context.Context) (alerting.Sink, error) {
	tc := a.Config.Alerting.Telegram
	if !tc.Enabled {
		a.Logger.Warn().Msg("telegram disabled; messages go to the log")
		return alerting.NewLogSink(a.Logger), nil
	}

	token := tc.BotToken
	if token == "" && tc.BotTokenParam != "" {
		resolver := a.secrets
		if resolver == nil {
			ssmResolver, err := secrets.NewSSMResolver(ctx)
			if err != nil {
				return nil, err
			}
			resolver = ssmResolver
		}
		resolved, err := resolver.Resolve(ctx, tc.BotTokenParam)
		if err != nil {
			return nil, fmt.Errorf("resolve telegram bot token: %w", err)
		}
		token = resolved
	}

	return alerting.NewTelegramSink(alerting.TelegramOptions{
		BotToken:  token,
		ChatID:    tc.ChatID,
		BaseURL:   tc.APIBase,
		ParseMode: tc.ParseMode,
		Timeout:   tc.Timeout,
	}, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.PostgresStore, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewPostgresStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.PostgresStore, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("database.dsn 未配置: %w", storage.ErrNotConfigured)
	}
	return store, closeStore, nil
}

func (a *App) newTracker(ctx context.Context) (*highwater.Tracker, error) {
	tracker := highwater.NewTracker(highwater.NewFilePersister(a.Config.HighWater.Path), a.Logger)
	if err := tracker.Load(ctx); err != nil {
		return nil, err
	}
	return tracker, nil
}

// Broadcast runs the leaderboard loop until interrupted.
func (a *App) Broadcast(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker, err := a.newTracker(ctx)
	if err != nil {
		return err
	}

	sink, err := a.newSink(ctx)
	if err != nil {
		return err
	}

	bc := a.Config.Broadcast
	sched := scheduler.New(scheduler.Options{
		Interval:       bc.Interval,
		StartupDelay:   bc.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	svc := service.NewBroadcaster(sched, store, tracker, sink, service.Options{
		WindowSize: bc.WindowSize,
		TopK:       bc.TopK,
		Freshness:  bc.Freshness,
		Unit:       a.Config.Ingest.Fiat,
	}, a.Logger)

	a.Logger.Info().Dur("interval", bc.Interval).Msg("starting broadcast loop")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("broadcast loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("broadcast loop stopped")
	return nil
}
