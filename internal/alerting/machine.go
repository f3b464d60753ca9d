package alerting

import (
	"time"

	"crypto-anomaly-monitor/internal/regime"
)

// Regime transition labels.
const (
	TransitionEntered        = "entered_sideways"
	TransitionEnded          = "ended_sideways"
	TransitionSteadySideways = "steady_sideways"
	TransitionSteadyNormal   = "steady_normal"
)

// RegimeConfig tunes the sideways regime machine.
type RegimeConfig struct {
	MinDuration   time.Duration // time in regime before heartbeats start, default 30m
	AlertInterval time.Duration // spacing between heartbeats, default 30m
}

// RegimeOutcome tells the orchestrator which of the two mutually exclusive
// branches to take this cycle. While the symbol is in (or just leaving) a
// sideways regime, the regime's own notifications take priority and the
// anomaly evaluator is skipped.
type RegimeOutcome struct {
	Transition    string
	RunBreakout   bool // evaluate the breakout detector on the ended edge
	Heartbeat     bool // a periodic still-sideways notification is due
	SkipEvaluator bool
}

// RegimeMachine is the per-symbol NORMAL/SIDEWAYS state machine.
type RegimeMachine struct {
	Config RegimeConfig
}

// Step advances the machine one cycle given the sideways detector output.
// The returned state must be persisted by the caller; stepping again with the
// already-reset state is a no-op on the ended edge, so a breakout can never be
// re-emitted.
func (m RegimeMachine) Step(now time.Time, sw regime.Sideways, state State) (RegimeOutcome, State) {
	nowTS := now.Unix()

	switch {
	case sw.IsSideways && !state.WasSideways:
		state.WasSideways = true
		state.SidewaysStartTS = nowTS
		return RegimeOutcome{Transition: TransitionEntered, SkipEvaluator: true}, state

	case !sw.IsSideways && state.WasSideways:
		state.WasSideways = false
		state.SidewaysStartTS = 0
		state.LastSidewaysAlertTS = 0
		return RegimeOutcome{Transition: TransitionEnded, RunBreakout: true, SkipEvaluator: true}, state

	case sw.IsSideways && state.WasSideways:
		outcome := RegimeOutcome{Transition: TransitionSteadySideways, SkipEvaluator: true}
		inRegime := time.Duration(nowTS-state.SidewaysStartTS) * time.Second
		sinceAlert := time.Duration(nowTS-state.LastSidewaysAlertTS) * time.Second
		if inRegime >= m.Config.MinDuration && sinceAlert >= m.Config.AlertInterval {
			outcome.Heartbeat = true
			state.LastSidewaysAlertTS = nowTS
		}
		return outcome, state

	default:
		return RegimeOutcome{Transition: TransitionSteadyNormal}, state
	}
}
