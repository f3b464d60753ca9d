package alerting

import (
	"math"
	"time"
)

// Alert kinds emitted by the evaluator, in rule order.
const (
	AlertConfirmedAnomaly = "confirmed_anomaly"
	AlertExtremeEvent     = "extreme_event"
	AlertPreMovement      = "pre_movement"
)

// Thresholds parameterise the anomaly decision ladder.
type Thresholds struct {
	StdDevThreshold  float64       // price z gate, default 2.0
	MinVolumeZ       float64       // volume confirmation floor, default 1.0
	ExtremeThreshold float64       // volume-bypass gate, default 3.0
	Cooldown         time.Duration // minimum spacing between alerts, default 30m
}

// Observation carries the per-cycle statistical inputs for one symbol.
type Observation struct {
	Price        float64
	Volume       float64
	PriceZ       float64
	VolumeZ      float64
	PriceMean    float64
	PriceStdDev  float64
	VolumeMean   float64
	VolumeStdDev float64
}

// Evaluator combines price and volume z-scores with a cooldown timer into a
// single alert decision per cycle.
type Evaluator struct {
	Thresholds Thresholds
}

// Evaluate walks the decision ladder: cooldown gate, confirmed anomaly,
// extreme event, pre-movement, no alert. First match wins. Only a fired alert
// mutates the state, and that write is the sole path that resets the cooldown
// clock.
func (e Evaluator) Evaluate(now time.Time, obs Observation, state State) (bool, string, State) {
	if state.LastAlertTS > 0 {
		elapsed := time.Duration(now.Unix()-state.LastAlertTS) * time.Second
		if elapsed < e.Thresholds.Cooldown {
			return false, "", state
		}
	}

	absPriceZ := math.Abs(obs.PriceZ)
	kind := ""
	switch {
	case absPriceZ >= e.Thresholds.StdDevThreshold && obs.VolumeZ >= e.Thresholds.MinVolumeZ:
		kind = AlertConfirmedAnomaly
	case absPriceZ >= e.Thresholds.ExtremeThreshold:
		kind = AlertExtremeEvent
	case obs.VolumeZ >= e.Thresholds.StdDevThreshold && absPriceZ < e.Thresholds.StdDevThreshold:
		kind = AlertPreMovement
	default:
		return false, "", state
	}

	state.LastAlertTS = now.Unix()
	state.LastPriceZ = obs.PriceZ
	state.LastVolumeZ = obs.VolumeZ
	return true, kind, state
}
