package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"ath-watcher/internal/alerting"
	"ath-watcher/internal/config"
	"ath-watcher/internal/fetcher"
	"ath-watcher/internal/httpapi"
	"ath-watcher/internal/metrics"
	"ath-watcher/internal/scheduler"
	"ath-watcher/internal/service"
	"ath-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFeed() fetcher.PriceSource {
	return fetcher.NewFeed(fetcher.FeedOptions{
		URL:          a.Config.FeedURL(),
		Asset:        a.Config.Feed.Asset,
		Currency:     a.Config.Feed.Currency,
		Timeout:      a.Config.Feed.RequestTimeout,
		UserAgent:    a.Config.Feed.UserAgent,
		StrictFields: a.Config.Feed.StrictFields,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	var channels alerting.MultiNotifier
	for _, ch := range a.Config.Alerting.Channels {
		switch ch {
		case config.ChannelNtfy:
			cfg := a.Config.Alerting.Ntfy
			channels = append(channels, alerting.NewNtfyNotifier(alerting.NtfyOptions{
				URL:      cfg.URL,
				Title:    cfg.Title,
				Tags:     cfg.Tags,
				Priority: cfg.Priority,
				Timeout:  cfg.RequestTimeout,
			}, a.Logger))
		case config.ChannelTelegram:
			cfg := a.Config.Alerting.Telegram
			channels = append(channels, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		}
	}
	switch len(channels) {
	case 0:
		return nil
	case 1:
		return channels[0]
	default:
		return channels
	}
}

// openStore builds the configured ATH store and a release func.
func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	switch a.Config.Store.Backend {
	case config.BackendPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(pool, a.Config.Feed.Asset, a.Logger)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendRedis:
		client, err := storage.NewRedisClient(ctx, a.Config.Store.Redis)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewRedisStore(client, a.Config.Store.Redis.Prefix, a.Config.Feed.Asset, a.Logger)
		return store, store.Close, nil
	case config.BackendFile, "":
		return storage.NewFileStore(a.Config.Store.Path, a.Logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", a.Config.Store.Backend)
	}
}

func (a *App) newService(store storage.Store, notifier alerting.Notifier, rec *metrics.Recorder) *service.Service {
	return service.New(service.Options{
		Asset:    a.Config.Feed.Asset,
		Currency: a.Config.Feed.Currency,
	}, a.newFeed(), store, notifier, rec, a.Logger)
}

// Run executes the long-running watcher until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
		TickTimeout:  a.Config.TickTimeout(),
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no alerting channels configured; new highs will only be logged")
	}
	svc := a.newService(store, notifier, rec)

	if addr := a.Config.HTTP.Listen; addr != "" {
		api := httpapi.New(store, a.Config.Feed.Asset, a.Config.Feed.Currency, reg, a.Logger)
		go func() {
			if err := api.Start(ctx, addr); err != nil {
				a.Logger.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	a.Logger.Info().
		Str("asset", a.Config.Feed.Asset).
		Str("currency", a.Config.Feed.Currency).
		Str("store", a.Config.Store.Backend).
		Dur("poll_period", a.Config.Scheduler.Interval).
		Msg("ath watcher starting")

	err = sched.Run(ctx, svc.ProcessTick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("ath watcher stopped")
	return nil
}

// Check runs a single cycle and reports its outcome.
func (a *App) Check(ctx context.Context) (service.Outcome, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return "", err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(ctx, a.Config.TickTimeout())
	defer cancel()

	return a.newService(store, a.newNotifier(), nil).RunCycle(ctx)
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
