package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"crypto-anomaly-monitor/internal/fetcher"
	"crypto-anomaly-monitor/internal/service"
)

// SimulateCycle runs one monitoring cycle against a fixed quote, exercising
// the full detection and notification path without touching the market APIs.
func (a *App) SimulateCycle(ctx context.Context, symbol string, price, volume decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	static := &staticFetcher{quote: fetcher.Quote{
		Symbol: symbol,
		Price:  price,
		Volume: volume,
		Source: "simulated",
	}}

	// Narrow the cycle to the simulated symbol only.
	monitorCfg := a.Config.Monitor
	monitorCfg.Symbols = []string{symbol}

	svc, err := service.New(monitorCfg, 0, service.Deps{
		Fetcher:  static,
		Store:    store,
		Notifier: a.newNotifier(),
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}

	tick := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.RunCycle(ctx, tick)
}

type staticFetcher struct {
	quote fetcher.Quote
}

func (s *staticFetcher) Fetch(_ context.Context, symbol string) (fetcher.Quote, error) {
	q := s.quote
	q.Symbol = symbol
	return q, nil
}

var _ fetcher.MarketDataFetcher = (*staticFetcher)(nil)
