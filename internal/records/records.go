// Package records maintains per-symbol all-time high/low tracking.
package records

import (
	"encoding/json"
	"math"
	"time"
)

// Stats holds the persisted record state for one symbol. AllTimeLow carries a
// +Inf sentinel until the first observation; highs only ever increase and lows
// only ever decrease.
type Stats struct {
	AllTimeHigh      float64
	AllTimeLow       float64
	LastATHTimestamp int64
	LastATLTimestamp int64
}

// NewStats returns the zero-observation state.
func NewStats() Stats {
	return Stats{AllTimeLow: math.Inf(1)}
}

// statsJSON is the wire form. The +Inf low sentinel cannot survive JSON, so
// it travels as an absent field and is restored on load.
type statsJSON struct {
	AllTimeHigh      float64  `json:"all_time_high"`
	AllTimeLow       *float64 `json:"all_time_low,omitempty"`
	LastATHTimestamp int64    `json:"last_ath_timestamp,omitempty"`
	LastATLTimestamp int64    `json:"last_atl_timestamp,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Stats) MarshalJSON() ([]byte, error) {
	wire := statsJSON{
		AllTimeHigh:      s.AllTimeHigh,
		LastATHTimestamp: s.LastATHTimestamp,
		LastATLTimestamp: s.LastATLTimestamp,
	}
	if !math.IsInf(s.AllTimeLow, 1) {
		low := s.AllTimeLow
		wire.AllTimeLow = &low
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler with forward-compatible
// defaulting: absent fields take their documented defaults.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var wire statsJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Stats{
		AllTimeHigh:      wire.AllTimeHigh,
		AllTimeLow:       math.Inf(1),
		LastATHTimestamp: wire.LastATHTimestamp,
		LastATLTimestamp: wire.LastATLTimestamp,
	}
	if wire.AllTimeLow != nil {
		s.AllTimeLow = *wire.AllTimeLow
	}
	return nil
}

// Update folds the current price into the record state. The first-ever
// observation seeds the low without counting as an alert-worthy new low.
// Timestamps are stamped only on the branch that fired.
func Update(stats Stats, price float64, ts int64) (Stats, bool, bool) {
	isNewHigh := price > stats.AllTimeHigh
	isNewLow := price < stats.AllTimeLow && !math.IsInf(stats.AllTimeLow, 1)

	if isNewHigh {
		stats.AllTimeHigh = price
		stats.LastATHTimestamp = ts
	}
	if isNewLow || math.IsInf(stats.AllTimeLow, 1) {
		stats.AllTimeLow = price
		if isNewLow {
			stats.LastATLTimestamp = ts
		}
	}
	return stats, isNewHigh, isNewLow
}

// Recency annotates how fresh the standing records are. Used only to enrich
// alert context, never to gate alerts.
type Recency struct {
	ATHRecent     bool
	ATLRecent     bool
	ATHMinutesAgo float64
	ATLMinutesAgo float64
}

// CheckRecency flags records set within the trailing window.
func CheckRecency(stats Stats, now time.Time, window time.Duration) Recency {
	r := Recency{}
	nowTS := now.Unix()
	if stats.LastATHTimestamp > 0 {
		r.ATHMinutesAgo = float64(nowTS-stats.LastATHTimestamp) / 60.0
		r.ATHRecent = nowTS-stats.LastATHTimestamp <= int64(window.Seconds())
	}
	if stats.LastATLTimestamp > 0 {
		r.ATLMinutesAgo = float64(nowTS-stats.LastATLTimestamp) / 60.0
		r.ATLRecent = nowTS-stats.LastATLTimestamp <= int64(window.Seconds())
	}
	return r
}
