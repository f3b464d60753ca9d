package regime

import (
	"math"
	"testing"
	"time"

	"crypto-anomaly-monitor/internal/market"
)

func spread(base int64, prices []float64) market.History {
	h := make(market.History, len(prices))
	for i, p := range prices {
		h[i] = market.Sample{Price: p, Volume: 100, Timestamp: base + int64(i)*60}
	}
	return h
}

func TestDetectSidewaysVolatile(t *testing.T) {
	base := time.Now().Unix() - 600
	prices := []float64{99, 100.5, 99.2, 100.4, 99.1, 100.3, 99.5, 100.5, 99, 100.2}
	result := DetectSideways(spread(base, prices), time.Hour, 1.0)
	if result.IsSideways {
		t.Fatalf("volatility %.2f%% should exceed 1%% threshold", result.VolatilityPct)
	}
	if result.VolatilityPct < 1.0 {
		t.Fatalf("expected volatility above threshold, got %.2f%%", result.VolatilityPct)
	}
}

func TestDetectSidewaysFlat(t *testing.T) {
	base := time.Now().Unix() - 600
	prices := []float64{99.9, 100.0, 99.95, 99.92, 100.0, 99.9, 99.98, 99.91, 99.96, 100.0}
	result := DetectSideways(spread(base, prices), time.Hour, 1.0)
	if !result.IsSideways {
		t.Fatalf("volatility %.2f%% should be under 1%% threshold", result.VolatilityPct)
	}
	if result.PriceMin != 99.9 || result.PriceMax != 100.0 {
		t.Fatalf("bounds wrong: [%f, %f]", result.PriceMin, result.PriceMax)
	}
	if result.DurationMinutes != 9 {
		t.Fatalf("expected 9 minutes of observed duration, got %f", result.DurationMinutes)
	}
}

func TestDetectSidewaysTooFewSamples(t *testing.T) {
	base := time.Now().Unix() - 600
	result := DetectSideways(spread(base, []float64{100, 100, 100}), time.Hour, 1.0)
	if result.IsSideways {
		t.Fatal("fewer than six samples must not report sideways")
	}
}

func TestDetectBreakoutUp(t *testing.T) {
	prior := Sideways{IsSideways: true, PriceMin: 99, PriceMax: 101}

	weak := DetectBreakout(103, 0.5, prior, 1.0, 1.0)
	if weak.Type != BreakoutWeak {
		t.Fatalf("volume z 0.5 should give weak breakout, got %s", weak.Type)
	}
	if weak.Direction != "up" {
		t.Fatalf("expected direction up, got %q", weak.Direction)
	}
	if math.Abs(weak.BreakoutPct-3.0) > 1e-9 {
		t.Fatalf("expected 3%% from midpoint 100, got %f", weak.BreakoutPct)
	}

	confirmed := DetectBreakout(103, 1.5, prior, 1.0, 1.0)
	if confirmed.Type != BreakoutConfirmed {
		t.Fatalf("volume z 1.5 should confirm breakout, got %s", confirmed.Type)
	}
}

func TestDetectBreakoutDown(t *testing.T) {
	prior := Sideways{IsSideways: true, PriceMin: 99, PriceMax: 101}
	result := DetectBreakout(97, 2.0, prior, 1.0, 1.0)
	if result.Type != BreakoutConfirmed || result.Direction != "down" {
		t.Fatalf("expected confirmed down breakout, got %+v", result)
	}
}

func TestDetectBreakoutInsideBand(t *testing.T) {
	prior := Sideways{IsSideways: true, PriceMin: 99, PriceMax: 101}
	result := DetectBreakout(100.5, 3.0, prior, 1.0, 1.0)
	if result.Type != BreakoutNone {
		t.Fatalf("price inside band should give no breakout, got %s", result.Type)
	}
}

func TestDetectBreakoutNotSideways(t *testing.T) {
	result := DetectBreakout(150, 3.0, Sideways{}, 1.0, 1.0)
	if result.Type != BreakoutNone {
		t.Fatal("breakout is only meaningful after a sideways regime")
	}
}

func TestDetectPatternBullishReversal(t *testing.T) {
	base := time.Now().Unix() - 900
	// Three chunks with rising lows: [100,101], [102,103], [104,105].
	prices := []float64{100, 101, 102, 103, 104, 105}
	result := DetectPattern(spread(base, prices), time.Hour, 3)
	if result.Kind != PatternBullishReversal {
		t.Fatalf("expected bullish reversal, got %s (lows %v)", result.Kind, result.ChunkLows)
	}
}

func TestDetectPatternBearishContinuation(t *testing.T) {
	base := time.Now().Unix() - 900
	prices := []float64{105, 104, 103, 102, 101, 100}
	result := DetectPattern(spread(base, prices), time.Hour, 3)
	if result.Kind != PatternBearishContinuation {
		t.Fatalf("expected bearish continuation, got %s (highs %v)", result.Kind, result.ChunkHighs)
	}
}

func TestDetectPatternInsufficientSamples(t *testing.T) {
	base := time.Now().Unix() - 900
	result := DetectPattern(spread(base, []float64{1, 2, 3, 4, 5}), time.Hour, 3)
	if result.Kind != PatternNeutral {
		t.Fatal("fewer than 2*minPoints samples must stay neutral")
	}
}
