package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Fallback chains a primary provider behind a circuit breaker with an
// optional secondary. The monitoring cycle is agnostic to which provider
// satisfied the call; the quote's Source field records it.
type Fallback struct {
	primary   MarketDataFetcher
	secondary MarketDataFetcher
	breaker   *gobreaker.CircuitBreaker
	logger    zerolog.Logger
}

// NewFallback wraps the primary in a circuit breaker. secondary may be nil,
// in which case primary failures propagate directly.
func NewFallback(primary, secondary MarketDataFetcher, logger zerolog.Logger) *Fallback {
	settings := gobreaker.Settings{
		Name:    "market-data",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger.With().Str("component", "fetcher_fallback").Logger(),
	}
}

// Fetch tries the primary through the breaker, then the secondary.
func (f *Fallback) Fetch(ctx context.Context, symbol string) (Quote, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.primary.Fetch(ctx, symbol)
	})
	if err == nil {
		return result.(Quote), nil
	}

	if f.secondary == nil {
		return Quote{}, err
	}

	f.logger.Warn().Err(err).Str("symbol", symbol).Msg("primary provider failed, trying fallback")
	quote, fbErr := f.secondary.Fetch(ctx, symbol)
	if fbErr != nil {
		return Quote{}, fmt.Errorf("primary: %v; fallback: %w", err, fbErr)
	}
	return quote, nil
}

var _ MarketDataFetcher = (*Fallback)(nil)
