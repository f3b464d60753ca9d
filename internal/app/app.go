// Package app aggregates configuration and shared dependencies for the CLI
// commands.
package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/cache"
	"crypto-anomaly-monitor/internal/config"
	"crypto-anomaly-monitor/internal/fetcher"
	"crypto-anomaly-monitor/internal/metrics"
	"crypto-anomaly-monitor/internal/scheduler"
	"crypto-anomaly-monitor/internal/sentiment"
	"crypto-anomaly-monitor/internal/service"
	"crypto-anomaly-monitor/internal/storage"
)

// App is the application handle shared by all CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.MarketDataFetcher {
	cg := a.Config.Market.CoinGecko
	primary := fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
		BaseURL:       cg.BaseURL,
		Timeout:       cg.RequestTimeout,
		UserAgent:     cg.UserAgent,
		RatePerMinute: cg.RatePerMinute,
	}, a.Logger)

	cl := a.Config.Market.Chainlink
	if cl.RPCURL == "" || len(cl.Feeds) == 0 {
		return fetcher.NewFallback(primary, nil, a.Logger)
	}

	secondary := fetcher.NewChainlink(fetcher.ChainlinkOptions{
		RPCURL:  cl.RPCURL,
		Timeout: cl.RequestTimeout,
		Feeds:   cl.Feeds,
	}, a.Logger)
	return fetcher.NewFallback(primary, secondary, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		tg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newSentiment() *sentiment.Fetcher {
	if !a.Config.Sentiment.Enabled {
		return nil
	}
	return sentiment.NewFetcher(sentiment.Options{
		BaseURL:   a.Config.Sentiment.BaseURL,
		Timeout:   a.Config.Sentiment.RequestTimeout,
		UserAgent: a.Config.Market.CoinGecko.UserAgent,
	}, a.Logger)
}

func (a *App) newCache() (cache.LastPriceCache, func()) {
	if a.Config.Redis.Addr == "" {
		return nil, nil
	}
	c := cache.NewRedisCache(a.Config.Redis)
	return c, func() { _ = c.Close() }
}

func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	switch a.Config.Storage.Backend {
	case config.BackendPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(pool)
		return store, store.Close, nil
	default:
		store, err := storage.NewFileStore(a.Config.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

func (a *App) newService(store storage.Store, f fetcher.MarketDataFetcher, c cache.LastPriceCache, m *metrics.Metrics) (*service.Service, error) {
	lockKey := int64(0)
	if a.Config.Storage.Backend == config.BackendPostgres {
		lockKey = a.Config.Scheduler.AdvisoryLockKey
	}
	return service.New(a.Config.Monitor, lockKey, service.Deps{
		Fetcher:   f,
		Store:     store,
		Cache:     c,
		Notifier:  a.newNotifier(),
		Sentiment: a.newSentiment(),
		Metrics:   m,
		Logger:    a.Logger,
	})
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	lastPrices, closeCache := a.newCache()
	if closeCache != nil {
		defer closeCache()
	}

	var m *metrics.Metrics
	if a.Config.Metrics.Enabled {
		m = metrics.New()
		a.serveMetrics(ctx, m)
	}

	svc, err := a.newService(store, a.newFetcher(), lastPrices, m)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToTick,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Strs("symbols", a.Config.Monitor.Symbols).
		Str("strategy", a.Config.Monitor.Strategy).
		Msg("starting monitoring service")

	err = sched.Run(ctx, svc.RunCycle)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// serveMetrics starts the Prometheus listener and ties its lifetime to ctx.
func (a *App) serveMetrics(ctx context.Context, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: a.Config.Metrics.ListenAddr, Handler: mux}

	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("metrics listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics listener failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Symbol    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Symbol string
	Limit  int
}
