// Package sentiment enriches alerts with CoinGecko community data and a
// derived pump score. Failures here only cost the enrichment, never the alert.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-anomaly-monitor/internal/fetcher"
)

// Data is the social/community snapshot for one coin.
type Data struct {
	SentimentVotesUpPct float64
	MentionsProxy       int // volume-derived proxy for social mention rate
	PublicInterestScore float64
	TwitterFollowers    int64
	RedditSubscribers   int64
	TotalVolumeUSD      float64
}

// Options parameterise the sentiment fetcher.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Fetcher pulls community data from the CoinGecko coins endpoint.
type Fetcher struct {
	opts    Options
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewFetcher constructs a sentiment fetcher.
func NewFetcher(opts Options, logger zerolog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	return &Fetcher{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "sentiment_fetcher").Logger(),
	}
}

type coinResponse struct {
	SentimentVotesUpPercentage *float64 `json:"sentiment_votes_up_percentage"`
	PublicInterestScore        float64  `json:"public_interest_score"`
	MarketData                 struct {
		TotalVolume map[string]float64 `json:"total_volume"`
	} `json:"market_data"`
	CommunityData struct {
		TwitterFollowers  int64 `json:"twitter_followers"`
		RedditSubscribers int64 `json:"reddit_subscribers"`
	} `json:"community_data"`
}

// Fetch retrieves community data for the symbol.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (Data, error) {
	coinID, ok := fetcher.CoinGeckoID(symbol)
	if !ok {
		return Data{}, fmt.Errorf("symbol %s not supported by coingecko mapping", symbol)
	}

	endpoint := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=true&community_data=true&developer_data=false", f.baseURL, coinID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Data{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Data{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Data{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Data{}, fmt.Errorf("coingecko coins api error (%d)", resp.StatusCode)
	}

	var parsed coinResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Data{}, fmt.Errorf("decode coins response: %w", err)
	}

	data := Data{
		SentimentVotesUpPct: 50.0,
		PublicInterestScore: parsed.PublicInterestScore,
		TwitterFollowers:    parsed.CommunityData.TwitterFollowers,
		RedditSubscribers:   parsed.CommunityData.RedditSubscribers,
	}
	if parsed.SentimentVotesUpPercentage != nil {
		data.SentimentVotesUpPct = *parsed.SentimentVotesUpPercentage
	}
	if vol, ok := parsed.MarketData.TotalVolume["usd"]; ok {
		data.TotalVolumeUSD = vol
		data.MentionsProxy = int(vol / 1_000_000)
	}
	return data, nil
}

// Score is the pump likelihood verdict derived from sentiment and technicals.
type Score struct {
	Value          int // 0-100
	Recommendation string
	HighRisk       bool
	Reason         string
}

// PumpScore weighs community sentiment (40%), technicals (40%), and social
// hype (20%) into a 0-100 score. Overbought RSI and weak sentiment apply flat
// penalties.
func PumpScore(data Data, rsi float64, volumeChangePct float64) Score {
	sentimentScore := 0.0
	if data.SentimentVotesUpPct > 50 {
		sentimentScore = (data.SentimentVotesUpPct - 50) * 2
	}

	rsiScore := 100 - abs(rsi-60)*2
	if rsiScore < 0 {
		rsiScore = 0
	}
	technical := clamp(volumeChangePct, 0, 100)*0.5 + rsiScore*0.5

	hype := clamp(volumeChangePct*3, 0, 100) * 0.2

	value := int(sentimentScore*0.4 + technical*0.4 + hype)
	if rsi > 80 {
		value -= 20
	}
	if data.SentimentVotesUpPct < 40 {
		value -= 30
	}
	value = int(clamp(float64(value), 0, 100))

	recommendation := "SELL"
	switch {
	case value >= 80:
		recommendation = "BUY"
	case value >= 50:
		recommendation = "WAIT"
	}

	return Score{
		Value:          value,
		Recommendation: recommendation,
		HighRisk:       rsi > 80 || data.SentimentVotesUpPct < 30,
		Reason:         fmt.Sprintf("Sentiment %.0f%% | Vol %+.0f%% | RSI %.0f", data.SentimentVotesUpPct, volumeChangePct, rsi),
	}
}

// Summary renders the enrichment block appended to alert texts.
func Summary(data Data, score Score) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Sentiment: %.0f%% positive, ~%d mentions/30min\n", data.SentimentVotesUpPct, data.MentionsProxy)
	fmt.Fprintf(b, "Pump score: %d/100 (%s)", score.Value, score.Recommendation)
	if score.HighRisk {
		b.WriteString(" [high risk]")
	}
	b.WriteString("\n")
	return b.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
