// Package stats provides the rolling-window series statistics behind the
// anomaly and regime detectors: mean, standard deviation, z-score, RSI,
// VWAP, momentum, and trend scoring.
package stats

import (
	"math"
	"time"

	"crypto-anomaly-monitor/internal/market"
)

// Snapshot summarises one channel (price or volume) of a history slice.
// Recomputed every cycle, never persisted.
type Snapshot struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Count  int
}

// Mean returns the arithmetic mean, 0.0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, 0.0 for fewer than two
// values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Describe computes the full snapshot for a value channel.
func Describe(values []float64) Snapshot {
	if len(values) == 0 {
		return Snapshot{}
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Snapshot{
		Mean:   Mean(values),
		StdDev: StdDev(values),
		Min:    min,
		Max:    max,
		Count:  len(values),
	}
}

// ZScore measures how far value sits from the mean in standard deviations and
// whether it crosses the anomaly threshold. A flat series (stddev == 0) never
// anomalizes.
func ZScore(value, mean, stddev, threshold float64) (bool, float64) {
	if stddev == 0 {
		return false, 0.0
	}
	z := (value - mean) / stddev
	return math.Abs(z) >= threshold, z
}

// RSI computes the Wilder-style Relative Strength Index over simple deltas.
// Returns false when fewer than period+1 prices are available. RSI is 100
// when the window contains no losing moves.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	window := prices[len(prices)-period-1:]
	gains, losses := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), true
}

// VWAP returns the volume-weighted mean price over the trailing window ending
// at the latest sample. Returns false when the window is empty or carries no
// volume.
func VWAP(history market.History, window time.Duration) (float64, bool) {
	windowed := history.Window(window)
	if len(windowed) == 0 {
		return 0, false
	}
	weighted, volume := 0.0, 0.0
	for _, s := range windowed {
		weighted += s.Price * s.Volume
		volume += s.Volume
	}
	if volume == 0 {
		return 0, false
	}
	return weighted / volume, true
}

// Momentum describes the rate of change over a trailing window.
type Momentum struct {
	RateOfChangePct float64
	Direction       string // positive, negative, neutral
	Strength        string // strong, moderate, weak
	PriceStart      float64
	PriceEnd        float64
}

// ComputeMomentum measures the percentage move between the first and last
// samples inside the trailing window. Direction is neutral inside +-1%;
// strength is strong beyond +-3%, else moderate, weak when neutral.
func ComputeMomentum(history market.History, window time.Duration) Momentum {
	windowed := history.Window(window)
	windowed.Sort()
	if len(windowed) < 2 {
		return Momentum{Direction: "neutral", Strength: "weak"}
	}
	start := windowed[0].Price
	end := windowed[len(windowed)-1].Price

	roc := 0.0
	if start != 0 {
		roc = (end - start) / start * 100.0
	}

	m := Momentum{RateOfChangePct: roc, PriceStart: start, PriceEnd: end}
	switch {
	case roc > 1.0:
		m.Direction = "positive"
	case roc < -1.0:
		m.Direction = "negative"
	default:
		m.Direction = "neutral"
	}
	switch {
	case m.Direction == "neutral":
		m.Strength = "weak"
	case math.Abs(roc) > 3.0:
		m.Strength = "strong"
	default:
		m.Strength = "moderate"
	}
	return m
}

// TrendScore counts up/down/flat transitions between consecutive samples.
type TrendScore struct {
	PositiveCount      int
	NegativeCount      int
	NeutralCount       int
	PositivePercentage float64
	Direction          string // bullish, bearish, neutral
}

// ComputeTrendScore classifies the trailing window as bullish when at least
// 60% of moves are upward, bearish at 40% or below, else neutral. Requires at
// least two in-window samples for a non-neutral verdict.
func ComputeTrendScore(history market.History, window time.Duration) TrendScore {
	windowed := history.Window(window)
	windowed.Sort()
	if len(windowed) < 2 {
		return TrendScore{Direction: "neutral"}
	}

	score := TrendScore{}
	for i := 1; i < len(windowed); i++ {
		switch {
		case windowed[i].Price > windowed[i-1].Price:
			score.PositiveCount++
		case windowed[i].Price < windowed[i-1].Price:
			score.NegativeCount++
		default:
			score.NeutralCount++
		}
	}

	moves := score.PositiveCount + score.NegativeCount + score.NeutralCount
	score.PositivePercentage = float64(score.PositiveCount) / float64(moves) * 100.0
	switch {
	case score.PositivePercentage >= 60.0:
		score.Direction = "bullish"
	case score.PositivePercentage <= 40.0:
		score.Direction = "bearish"
	default:
		score.Direction = "neutral"
	}
	return score
}
