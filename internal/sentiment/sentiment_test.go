package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFetchParsesCommunityData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"sentiment_votes_up_percentage": 72.5,
			"public_interest_score": 0.3,
			"market_data": {"total_volume": {"usd": 5000000}},
			"community_data": {"twitter_followers": 1000, "reddit_subscribers": 500}
		}`))
	}))
	defer srv.Close()

	f := NewFetcher(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	data, err := f.Fetch(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if data.SentimentVotesUpPct != 72.5 {
		t.Fatalf("wrong sentiment: %f", data.SentimentVotesUpPct)
	}
	if data.MentionsProxy != 5 {
		t.Fatalf("mentions proxy should derive from volume, got %d", data.MentionsProxy)
	}
	if data.TwitterFollowers != 1000 {
		t.Fatalf("wrong twitter followers: %d", data.TwitterFollowers)
	}
}

func TestFetchDefaultsMissingSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFetcher(Options{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
	data, err := f.Fetch(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if data.SentimentVotesUpPct != 50.0 {
		t.Fatalf("missing sentiment should default to 50, got %f", data.SentimentVotesUpPct)
	}
}

func TestPumpScoreBounds(t *testing.T) {
	score := PumpScore(Data{SentimentVotesUpPct: 90}, 60, 100)
	if score.Value < 0 || score.Value > 100 {
		t.Fatalf("score out of bounds: %d", score.Value)
	}
	if score.Value < 80 || score.Recommendation != "BUY" {
		t.Fatalf("strong inputs should recommend BUY, got %d %s", score.Value, score.Recommendation)
	}
}

func TestPumpScorePenalties(t *testing.T) {
	overbought := PumpScore(Data{SentimentVotesUpPct: 90}, 85, 100)
	if !overbought.HighRisk {
		t.Fatal("RSI above 80 must flag high risk")
	}

	bearish := PumpScore(Data{SentimentVotesUpPct: 20}, 50, 0)
	if bearish.Value > 20 {
		t.Fatalf("weak sentiment should crater the score, got %d", bearish.Value)
	}
	if !bearish.HighRisk {
		t.Fatal("sentiment below 30 must flag high risk")
	}
}
