// Package regime implements the sideways-movement, breakout, and
// higher-lows/lower-highs detectors that classify recent market structure.
package regime

import (
	"time"

	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/stats"
)

// Breakout classification.
const (
	BreakoutNone      = "none"
	BreakoutWeak      = "weak"
	BreakoutConfirmed = "confirmed"
)

// Pattern classification.
const (
	PatternBullishReversal     = "bullish_reversal"
	PatternBearishContinuation = "bearish_continuation"
	PatternNeutral             = "neutral"
)

// minSidewaysSamples is the floor below which a window is too sparse to call
// sideways.
const minSidewaysSamples = 6

// Sideways reports the state of the lateral-movement detector.
type Sideways struct {
	IsSideways      bool
	PriceMin        float64
	PriceMax        float64
	PriceMean       float64
	VolatilityPct   float64
	DurationMinutes float64
	SampleCount     int
}

// DetectSideways inspects the trailing window and flags a sideways regime
// when price volatility (max-min as a percentage of the mean) stays below
// thresholdPct across at least six samples.
func DetectSideways(history market.History, window time.Duration, thresholdPct float64) Sideways {
	windowed := history.Window(window)
	windowed.Sort()

	result := Sideways{SampleCount: len(windowed)}
	if len(windowed) == 0 {
		return result
	}

	snap := stats.Describe(windowed.Prices())
	result.PriceMin = snap.Min
	result.PriceMax = snap.Max
	result.PriceMean = snap.Mean
	result.DurationMinutes = float64(windowed[len(windowed)-1].Timestamp-windowed[0].Timestamp) / 60.0

	if snap.Mean != 0 {
		result.VolatilityPct = (snap.Max - snap.Min) / snap.Mean * 100.0
	}

	result.IsSideways = result.VolatilityPct < thresholdPct && len(windowed) >= minSidewaysSamples
	return result
}

// Breakout reports whether price escaped a prior sideways band.
type Breakout struct {
	Type        string // none, weak, confirmed
	Direction   string // up, down
	BreakoutPct float64
	Baseline    float64
}

// DetectBreakout evaluates the current price against the bounds of a prior
// sideways snapshot. The band midpoint serves as the percentage baseline. A
// breakout without volume corroboration is classified weak, the known
// false-breakout pattern.
func DetectBreakout(price, volumeZ float64, prior Sideways, minBreakoutPct, minVolumeZ float64) Breakout {
	result := Breakout{Type: BreakoutNone}
	if !prior.IsSideways {
		return result
	}

	midpoint := (prior.PriceMax + prior.PriceMin) / 2.0
	if midpoint == 0 {
		return result
	}
	result.Baseline = midpoint

	var deviationPct float64
	switch {
	case price > prior.PriceMax:
		deviationPct = (price - midpoint) / midpoint * 100.0
		result.Direction = "up"
	case price < prior.PriceMin:
		deviationPct = (midpoint - price) / midpoint * 100.0
		result.Direction = "down"
	default:
		return result
	}

	if deviationPct < minBreakoutPct {
		result.Direction = ""
		return result
	}

	result.BreakoutPct = deviationPct
	if volumeZ >= minVolumeZ {
		result.Type = BreakoutConfirmed
	} else {
		result.Type = BreakoutWeak
	}
	return result
}

// Pattern reports the higher-lows / lower-highs structure verdict.
type Pattern struct {
	Kind       string
	ChunkLows  []float64
	ChunkHighs []float64
}

// DetectPattern partitions the in-window series into minPoints equal chunks
// and checks chunk-local minima for a monotonic rise (bullish reversal) or
// chunk-local maxima for a monotonic fall (bearish continuation). Ambiguous
// structure is neutral. Requires at least 2*minPoints in-window samples.
func DetectPattern(history market.History, window time.Duration, minPoints int) Pattern {
	result := Pattern{Kind: PatternNeutral}
	if minPoints < 2 {
		minPoints = 3
	}

	windowed := history.Window(window)
	windowed.Sort()
	if len(windowed) < 2*minPoints {
		return result
	}

	chunkSize := len(windowed) / minPoints
	lows := make([]float64, 0, minPoints)
	highs := make([]float64, 0, minPoints)
	for i := 0; i < minPoints; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == minPoints-1 {
			end = len(windowed)
		}
		snap := stats.Describe(windowed[start:end].Prices())
		lows = append(lows, snap.Min)
		highs = append(highs, snap.Max)
	}
	result.ChunkLows = lows
	result.ChunkHighs = highs

	higherLows := monotonicUp(lows)
	lowerHighs := monotonicDown(highs)
	switch {
	case higherLows && !lowerHighs:
		result.Kind = PatternBullishReversal
	case lowerHighs && !higherLows:
		result.Kind = PatternBearishContinuation
	}
	return result
}

func monotonicUp(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return false
		}
	}
	return true
}

func monotonicDown(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] >= values[i-1] {
			return false
		}
	}
	return true
}
