// Package cache provides a fast last-price lookup used by the simple
// variation strategy, avoiding a full history load per cycle.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss indicates no cached price exists for the symbol.
var ErrMiss = errors.New("cache: miss")

// LastPrice is the cached quick-access record per symbol.
type LastPrice struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// LastPriceCache reads and writes the most recent observed price per symbol.
type LastPriceCache interface {
	Get(ctx context.Context, symbol string) (LastPrice, error)
	Set(ctx context.Context, symbol string, last LastPrice) error
}

// RedisConfig describes Redis connectivity. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisCache stores last prices in Redis under cryptomon:last_price:<symbol>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed last-price cache.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func key(symbol string) string {
	return "cryptomon:last_price:" + symbol
}

// Get returns the cached last price, ErrMiss when absent.
func (c *RedisCache) Get(ctx context.Context, symbol string) (LastPrice, error) {
	data, err := c.client.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return LastPrice{}, ErrMiss
	}
	if err != nil {
		return LastPrice{}, fmt.Errorf("redis get: %w", err)
	}

	var last LastPrice
	if err := json.Unmarshal(data, &last); err != nil {
		return LastPrice{}, fmt.Errorf("decode last price: %w", err)
	}
	return last, nil
}

// Set stores the last price with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, symbol string, last LastPrice) error {
	data, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("encode last price: %w", err)
	}
	if err := c.client.Set(ctx, key(symbol), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ LastPriceCache = (*RedisCache)(nil)
