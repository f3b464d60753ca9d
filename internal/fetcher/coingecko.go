package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const coingeckoSimplePricePath = "/simple/price"

// coingeckoIDs maps exchange-style symbols to CoinGecko coin ids.
var coingeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"DOGE": "dogecoin",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
}

// CoinGeckoID resolves a symbol (with or without a USDT suffix) to its
// CoinGecko coin id.
func CoinGeckoID(symbol string) (string, bool) {
	clean := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(symbol), "USDT"))
	id, ok := coingeckoIDs[clean]
	return id, ok
}

// CoinGeckoOptions parameterise the CoinGecko fetcher.
type CoinGeckoOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RatePerMinute caps outgoing requests; the free tier throttles hard.
	RatePerMinute int
}

// CoinGecko fetches spot price and 24h volume from the CoinGecko simple
// price API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	logger  zerolog.Logger
}

// NewCoinGecko constructs a CoinGecko fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	return &CoinGecko{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		baseURL: baseURL,
		logger:  logger.With().Str("component", "coingecko_fetcher").Logger(),
	}
}

// Fetch retrieves the current USD price and 24h volume for the symbol.
func (c *CoinGecko) Fetch(ctx context.Context, symbol string) (Quote, error) {
	coinID, ok := CoinGeckoID(symbol)
	if !ok {
		return Quote{}, fmt.Errorf("symbol %s not supported by coingecko mapping", symbol)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Quote{}, err
	}

	endpoint := fmt.Sprintf("%s%s?ids=%s&vs_currencies=usd&include_24hr_vol=true", c.baseURL, coingeckoSimplePricePath, coinID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "cryptomon/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("coingecko api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed map[string]map[string]json.Number
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Quote{}, fmt.Errorf("decode coingecko response: %w", err)
	}

	entry, ok := parsed[coinID]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko response missing %s", coinID)
	}
	priceRaw, ok := entry["usd"]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko response missing usd price for %s", coinID)
	}

	price, err := decimal.NewFromString(priceRaw.String())
	if err != nil {
		return Quote{}, fmt.Errorf("parse price: %w", err)
	}
	if price.IsZero() {
		return Quote{}, fmt.Errorf("coingecko returned zero price for %s", symbol)
	}

	volume := decimal.Zero
	if volumeRaw, ok := entry["usd_24h_vol"]; ok {
		if v, err := decimal.NewFromString(volumeRaw.String()); err == nil {
			volume = v
		}
	}

	return Quote{Symbol: symbol, Price: price, Volume: volume, Source: "coingecko"}, nil
}

var _ MarketDataFetcher = (*CoinGecko)(nil)
