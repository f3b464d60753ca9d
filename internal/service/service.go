// Package service runs the monitoring cycle: fetch, persist, detect, notify.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/cache"
	"crypto-anomaly-monitor/internal/config"
	"crypto-anomaly-monitor/internal/fetcher"
	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/metrics"
	"crypto-anomaly-monitor/internal/records"
	"crypto-anomaly-monitor/internal/regime"
	"crypto-anomaly-monitor/internal/sentiment"
	"crypto-anomaly-monitor/internal/stats"
	"crypto-anomaly-monitor/internal/storage"
)

// Deps bundles the ports the service consumes. Cache, Notifier, Sentiment,
// and Metrics are optional; a nil port degrades to logging.
type Deps struct {
	Fetcher   fetcher.MarketDataFetcher
	Store     storage.Store
	Cache     cache.LastPriceCache
	Notifier  alerting.Notifier
	Sentiment *sentiment.Fetcher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Status is the lightweight health snapshot reported by CLI commands.
type Status struct {
	Status   string   `json:"status"`
	Strategy string   `json:"strategy"`
	Symbols  []string `json:"symbols"`
}

// Service orchestrates one monitoring cycle per scheduler tick. Symbols are
// processed sequentially; a failing symbol is logged and skipped so the rest
// of the cycle still runs.
type Service struct {
	cfg       config.MonitorConfig
	lockKey   int64
	variation map[string]decimal.Decimal

	retention  time.Duration
	maWindow   time.Duration
	vwapWindow time.Duration

	evaluator alerting.Evaluator
	machine   alerting.RegimeMachine

	deps   Deps
	logger zerolog.Logger
}

// New constructs the service from monitor configuration and its ports.
func New(cfg config.MonitorConfig, lockKey int64, deps Deps) (*Service, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("service: market data fetcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("service: store is required")
	}

	thresholds, err := config.ParseVariationThresholds(cfg.VariationThresholds)
	if err != nil {
		return nil, err
	}
	variation := make(map[string]decimal.Decimal, len(thresholds))
	for symbol, pct := range thresholds {
		variation[symbol] = decimal.NewFromFloat(pct)
	}

	return &Service{
		cfg:        cfg,
		lockKey:    lockKey,
		variation:  variation,
		retention:  time.Duration(cfg.HistoryDays) * 24 * time.Hour,
		maWindow:   time.Duration(cfg.MovingAverageHours) * time.Hour,
		vwapWindow: time.Duration(cfg.VWAPHours) * time.Hour,
		evaluator: alerting.Evaluator{Thresholds: alerting.Thresholds{
			StdDevThreshold:  cfg.StdDevThreshold,
			MinVolumeZ:       cfg.MinVolumeZ,
			ExtremeThreshold: cfg.ExtremeThreshold,
			Cooldown:         cfg.Cooldown,
		}},
		machine: alerting.RegimeMachine{Config: alerting.RegimeConfig{
			MinDuration:   cfg.SidewaysMinDuration,
			AlertInterval: cfg.SidewaysInterval,
		}},
		deps:   deps,
		logger: deps.Logger.With().Str("component", "service").Logger(),
	}, nil
}

// Status reports the service configuration summary.
func (s *Service) Status() Status {
	return Status{Status: "ok", Strategy: s.cfg.Strategy, Symbols: s.cfg.Symbols}
}

// RunCycle executes one full monitoring pass over all configured symbols.
// When the store supports advisory locking and another process holds the
// lock, the cycle is skipped rather than run concurrently.
func (s *Service) RunCycle(ctx context.Context, tick time.Time) error {
	started := time.Now()
	defer func() {
		if s.deps.Metrics != nil {
			s.deps.Metrics.CycleDuration.Observe(time.Since(started).Seconds())
			s.deps.Metrics.CyclesTotal.Inc()
		}
	}()

	if locker, ok := s.deps.Store.(storage.AdvisoryLocker); ok && s.lockKey != 0 {
		unlock, acquired, err := locker.TryAdvisoryLock(ctx, s.lockKey)
		if err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if !acquired {
			s.logger.Warn().Msg("another process holds the cycle lock, skipping tick")
			return nil
		}
		defer unlock()
	}

	for _, symbol := range s.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processSymbol(ctx, tick, symbol); err != nil {
			if s.deps.Metrics != nil {
				s.deps.Metrics.SymbolErrorsTotal.Inc()
			}
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("symbol cycle failed")
		}
	}
	return nil
}

func (s *Service) processSymbol(ctx context.Context, tick time.Time, symbol string) error {
	quote, err := s.deps.Fetcher.Fetch(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("market data fetch failed")
		s.notify(ctx, "fetch_warning", alerting.RenderFetchWarning(symbol, err))
		return nil
	}

	price := quote.Price.InexactFloat64()
	volume := quote.Volume.InexactFloat64()
	sample := market.Sample{Price: price, Volume: volume, Timestamp: tick.Unix()}

	s.checkVariation(ctx, symbol, quote, tick)

	if err := s.deps.Store.AppendAndPrune(ctx, symbol, sample, s.retention); err != nil {
		return fmt.Errorf("append sample: %w", err)
	}

	if s.cfg.Strategy == config.StrategyMovingAverage || s.cfg.Strategy == config.StrategyBoth {
		if err := s.runMovingAverage(ctx, tick, symbol, sample); err != nil {
			return err
		}
	}
	if s.cfg.Strategy == config.StrategyRecords || s.cfg.Strategy == config.StrategyBoth {
		if err := s.runRecords(ctx, tick, symbol, price); err != nil {
			return err
		}
	}
	return nil
}

// checkVariation implements the simple threshold strategy against the last
// known price. Cache problems cost only this check.
func (s *Service) checkVariation(ctx context.Context, symbol string, quote fetcher.Quote, tick time.Time) {
	threshold, watched := s.variation[symbol]
	if !watched {
		return
	}

	if last, ok := s.lastKnownPrice(ctx, symbol); ok {
		lastPrice := decimal.NewFromFloat(last)
		variationPct := quote.Price.Sub(lastPrice).Div(lastPrice).Mul(decimal.NewFromInt(100))
		if variationPct.Abs().GreaterThanOrEqual(threshold) {
			s.notify(ctx, "variation", alerting.RenderVariation(symbol, variationPct, lastPrice, quote.Price))
		}
	}

	if s.deps.Cache != nil {
		update := cache.LastPrice{Price: quote.Price.InexactFloat64(), Timestamp: tick.Unix()}
		if err := s.deps.Cache.Set(ctx, symbol, update); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("last price cache write failed")
		}
	}
}

// lastKnownPrice prefers the cache and falls back to the newest persisted
// sample.
func (s *Service) lastKnownPrice(ctx context.Context, symbol string) (float64, bool) {
	if s.deps.Cache != nil {
		last, err := s.deps.Cache.Get(ctx, symbol)
		if err == nil && last.Price != 0 {
			return last.Price, true
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("last price cache read failed")
		}
	}

	history, err := s.deps.Store.LoadHistory(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("history load for variation check failed")
		return 0, false
	}
	if latest, ok := history.Latest(); ok && latest.Price != 0 {
		return latest.Price, true
	}
	return 0, false
}

func (s *Service) runMovingAverage(ctx context.Context, tick time.Time, symbol string, sample market.Sample) error {
	history, err := s.deps.Store.LoadHistory(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	history.Sort()

	windowed := history.Window(s.maWindow)
	if len(windowed) < s.cfg.MinSamples {
		s.logger.Debug().Str("symbol", symbol).Int("samples", len(windowed)).Msg("not enough samples for statistics")
		return nil
	}

	priceSnap := stats.Describe(windowed.Prices())
	volumeSnap := stats.Describe(windowed.Volumes())
	_, priceZ := stats.ZScore(sample.Price, priceSnap.Mean, priceSnap.StdDev, s.cfg.StdDevThreshold)
	_, volumeZ := stats.ZScore(sample.Volume, volumeSnap.Mean, volumeSnap.StdDev, s.cfg.StdDevThreshold)

	obs := alerting.Observation{
		Price:        sample.Price,
		Volume:       sample.Volume,
		PriceZ:       priceZ,
		VolumeZ:      volumeZ,
		PriceMean:    priceSnap.Mean,
		PriceStdDev:  priceSnap.StdDev,
		VolumeMean:   volumeSnap.Mean,
		VolumeStdDev: volumeSnap.StdDev,
	}

	loaded, err := s.deps.Store.LoadAlertState(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load alert state: %w", err)
	}

	sw := regime.DetectSideways(history, s.cfg.SidewaysWindow, s.cfg.SidewaysThreshold)
	outcome, state := s.machine.Step(tick, sw, loaded)

	switch outcome.Transition {
	case alerting.TransitionEntered:
		s.logger.Info().Str("symbol", symbol).
			Float64("volatility_pct", sw.VolatilityPct).
			Msg("entered sideways regime")

	case alerting.TransitionEnded:
		s.logger.Info().Str("symbol", symbol).Msg("sideways regime ended")
		if outcome.RunBreakout {
			s.emitBreakout(ctx, tick, symbol, history, sample, volumeZ, volumeSnap)
		}

	case alerting.TransitionSteadySideways:
		if outcome.Heartbeat {
			inRegime := float64(tick.Unix()-loaded.SidewaysStartTS) / 60.0
			s.notify(ctx, "sideways_heartbeat", alerting.RenderSidewaysHeartbeat(symbol, sw, inRegime))
		}

	default:
		fired, kind, next := s.evaluator.Evaluate(tick, obs, state)
		state = next
		if fired {
			mctx := s.marketContext(ctx, symbol, history, sample, volumeSnap)
			s.notify(ctx, kind, alerting.RenderAnomaly(symbol, kind, obs, s.cfg.MovingAverageHours, mctx))
		}
	}

	if state != loaded {
		if err := s.deps.Store.SaveAlertState(ctx, symbol, state); err != nil {
			return fmt.Errorf("save alert state: %w", err)
		}
	}
	return nil
}

// emitBreakout classifies the escape from the regime that just ended. The
// band is recomputed from the samples that preceded the current one; the
// persisted flag, not the recomputation, is the authority that a regime
// stood.
func (s *Service) emitBreakout(ctx context.Context, tick time.Time, symbol string, history market.History, sample market.Sample, volumeZ float64, volumeSnap stats.Snapshot) {
	prior := make(market.History, 0, len(history))
	for _, p := range history {
		if p.Timestamp < sample.Timestamp {
			prior = append(prior, p)
		}
	}
	band := regime.DetectSideways(prior, s.cfg.SidewaysWindow, s.cfg.SidewaysThreshold)
	band.IsSideways = true

	bo := regime.DetectBreakout(sample.Price, volumeZ, band, s.cfg.BreakoutMinPct, s.cfg.MinVolumeZ)
	if bo.Type == regime.BreakoutNone {
		return
	}

	mctx := s.marketContext(ctx, symbol, history, sample, volumeSnap)
	s.notify(ctx, "breakout_"+bo.Type, alerting.RenderBreakout(symbol, bo, band, sample.Price, mctx))
}

func (s *Service) runRecords(ctx context.Context, tick time.Time, symbol string, price float64) error {
	previous, err := s.deps.Store.LoadRecordStats(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load record stats: %w", err)
	}

	updated, newHigh, newLow := records.Update(previous, price, tick.Unix())
	recency := records.CheckRecency(previous, tick, s.cfg.RecordRecency)

	if newHigh {
		s.notify(ctx, "new_high", alerting.RenderNewHigh(symbol, price, previous.AllTimeHigh, recency))
	}
	if newLow {
		s.notify(ctx, "new_low", alerting.RenderNewLow(symbol, price, previous.AllTimeLow, recency))
	}

	if updated != previous {
		if err := s.deps.Store.SaveRecordStats(ctx, symbol, updated); err != nil {
			return fmt.Errorf("save record stats: %w", err)
		}
	}
	return nil
}

// marketContext assembles the technical enrichment for an alert. Every field
// is best-effort; enrichment failures never block the notification.
func (s *Service) marketContext(ctx context.Context, symbol string, history market.History, sample market.Sample, volumeSnap stats.Snapshot) alerting.MarketContext {
	mctx := alerting.MarketContext{
		Momentum: stats.ComputeMomentum(history, s.maWindow),
		Trend:    stats.ComputeTrendScore(history, s.maWindow),
		Pattern:  regime.DetectPattern(history, s.cfg.SidewaysWindow, s.cfg.PatternMinPoints),
	}
	if rsi, ok := stats.RSI(history.Prices(), s.cfg.RSIPeriod); ok {
		mctx.RSI = rsi
		mctx.HasRSI = true
	}
	if vwap, ok := stats.VWAP(history, s.vwapWindow); ok {
		mctx.VWAP = vwap
		mctx.HasVWAP = true
	}

	if s.deps.Sentiment != nil {
		data, err := s.deps.Sentiment.Fetch(ctx, symbol)
		if err != nil {
			s.logger.Debug().Err(err).Str("symbol", symbol).Msg("sentiment fetch failed")
			return mctx
		}
		volumeChangePct := 0.0
		if volumeSnap.Mean != 0 {
			volumeChangePct = (sample.Volume - volumeSnap.Mean) / volumeSnap.Mean * 100.0
		}
		score := sentiment.PumpScore(data, mctx.RSI, volumeChangePct)
		mctx.Sentiment = sentiment.Summary(data, score)
	}
	return mctx
}

// notify delivers a rendered alert. Without a notifier the alert text is
// logged instead, which keeps dry runs useful.
func (s *Service) notify(ctx context.Context, kind, text string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.AlertsTotal.WithLabelValues(kind).Inc()
	}
	if s.deps.Notifier == nil {
		s.logger.Info().Str("kind", kind).Str("alert", text).Msg("alert (no notifier configured)")
		return
	}
	if err := s.deps.Notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("alert delivery failed")
	}
}
