package alerting

// stateVersion is the current persisted schema version for State.
const stateVersion = 1

// State is the per-symbol persisted alert record driving cooldown and the
// sideways/breakout regime machine. Loaded at the start of each cycle and
// written at most once per cycle.
type State struct {
	Version             int     `json:"version,omitempty"`
	LastAlertTS         int64   `json:"last_alert_ts"`
	LastPriceZ          float64 `json:"last_price_z"`
	LastVolumeZ         float64 `json:"last_volume_z"`
	SidewaysStartTS     int64   `json:"sideways_start_ts"`
	LastSidewaysAlertTS int64   `json:"last_sideways_alert_ts"`
	WasSideways         bool    `json:"was_sideways"`
}

// NewState returns the documented default state for a symbol with no prior
// record.
func NewState() State {
	return State{Version: stateVersion}
}

// Normalize migrates a loaded record to the current schema. Fields absent
// from older blobs already decode to their zero defaults; the invariant
// was_sideways => sideways_start_ts > 0 is re-established by dropping a
// sideways flag that lost its start timestamp.
func (s *State) Normalize() {
	if s.WasSideways && s.SidewaysStartTS <= 0 {
		s.WasSideways = false
		s.LastSidewaysAlertTS = 0
	}
	s.Version = stateVersion
}
