package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCoinGeckoIDMapping(t *testing.T) {
	if id, ok := CoinGeckoID("BTCUSDT"); !ok || id != "bitcoin" {
		t.Fatalf("BTCUSDT should map to bitcoin, got %q %v", id, ok)
	}
	if id, ok := CoinGeckoID("sol"); !ok || id != "solana" {
		t.Fatalf("sol should map to solana, got %q %v", id, ok)
	}
	if _, ok := CoinGeckoID("NOPE"); ok {
		t.Fatal("unknown symbol must not resolve")
	}
}

func TestCoinGeckoFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "bitcoin" {
			t.Fatalf("unexpected ids param: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]map[string]float64{
			"bitcoin": {"usd": 65000.5, "usd_24h_vol": 1234567.0},
		})
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	quote, err := c.Fetch(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromFloat(65000.5)) {
		t.Fatalf("wrong price: %s", quote.Price)
	}
	if !quote.Volume.Equal(decimal.NewFromFloat(1234567.0)) {
		t.Fatalf("wrong volume: %s", quote.Volume)
	}
	if quote.Source != "coingecko" {
		t.Fatalf("wrong source: %s", quote.Source)
	}
}

func TestCoinGeckoFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := c.Fetch(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("HTTP 429 should be an error")
	}
}

func TestCoinGeckoFetchUnknownSymbol(t *testing.T) {
	c := NewCoinGecko(CoinGeckoOptions{}, noopLogger())
	if _, err := c.Fetch(context.Background(), "UNKNOWN"); err == nil {
		t.Fatal("unsupported symbol should be an error")
	}
}

type staticFetcher struct {
	quote Quote
	err   error
}

func (s staticFetcher) Fetch(ctx context.Context, symbol string) (Quote, error) {
	return s.quote, s.err
}

func TestFallbackUsesSecondary(t *testing.T) {
	primary := staticFetcher{err: errors.New("down")}
	secondary := staticFetcher{quote: Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(100), Source: "chainlink"}}

	f := NewFallback(primary, secondary, noopLogger())
	quote, err := f.Fetch(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("fallback should have saved the fetch: %v", err)
	}
	if quote.Source != "chainlink" {
		t.Fatalf("expected fallback quote, got %s", quote.Source)
	}
}

func TestFallbackBothFail(t *testing.T) {
	f := NewFallback(staticFetcher{err: errors.New("down")}, staticFetcher{err: errors.New("also down")}, noopLogger())
	if _, err := f.Fetch(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("both providers failing should be an error")
	}
}

func TestFallbackPrimaryOnly(t *testing.T) {
	f := NewFallback(staticFetcher{quote: Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(1), Source: "coingecko"}}, nil, noopLogger())
	quote, err := f.Fetch(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("primary fetch should succeed: %v", err)
	}
	if quote.Source != "coingecko" {
		t.Fatalf("expected primary quote, got %s", quote.Source)
	}
}
