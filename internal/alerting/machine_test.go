package alerting

import (
	"testing"
	"time"

	"crypto-anomaly-monitor/internal/regime"
)

func machine() RegimeMachine {
	return RegimeMachine{Config: RegimeConfig{
		MinDuration:   30 * time.Minute,
		AlertInterval: 30 * time.Minute,
	}}
}

func TestStepEnterSideways(t *testing.T) {
	now := time.Unix(100_000, 0)
	outcome, state := machine().Step(now, regime.Sideways{IsSideways: true}, NewState())
	if outcome.Transition != TransitionEntered {
		t.Fatalf("expected entered transition, got %s", outcome.Transition)
	}
	if !state.WasSideways || state.SidewaysStartTS != now.Unix() {
		t.Fatalf("entry must record the start timestamp: %+v", state)
	}
	if !outcome.SkipEvaluator {
		t.Fatal("regime branches must exclude the anomaly evaluator")
	}
}

func TestStepSteadySidewaysHeartbeat(t *testing.T) {
	m := machine()
	now := time.Unix(100_000, 0)
	state := State{WasSideways: true, SidewaysStartTS: now.Add(-45 * time.Minute).Unix()}

	outcome, state := m.Step(now, regime.Sideways{IsSideways: true}, state)
	if outcome.Transition != TransitionSteadySideways || !outcome.Heartbeat {
		t.Fatalf("45 minutes in regime should emit a heartbeat, got %+v", outcome)
	}
	if state.LastSidewaysAlertTS != now.Unix() {
		t.Fatal("heartbeat must refresh last_sideways_alert_ts")
	}

	// A second cycle right after must stay silent until the interval passes.
	outcome, _ = m.Step(now.Add(5*time.Minute), regime.Sideways{IsSideways: true}, state)
	if outcome.Heartbeat {
		t.Fatal("heartbeat interval not honoured")
	}
}

func TestStepSteadySidewaysTooYoung(t *testing.T) {
	now := time.Unix(100_000, 0)
	state := State{WasSideways: true, SidewaysStartTS: now.Add(-10 * time.Minute).Unix()}
	outcome, _ := machine().Step(now, regime.Sideways{IsSideways: true}, state)
	if outcome.Heartbeat {
		t.Fatal("regime younger than min duration must not heartbeat")
	}
	if !outcome.SkipEvaluator {
		t.Fatal("steady sideways must still skip the evaluator")
	}
}

func TestStepEndSideways(t *testing.T) {
	now := time.Unix(100_000, 0)
	state := State{
		WasSideways:         true,
		SidewaysStartTS:     now.Add(-time.Hour).Unix(),
		LastSidewaysAlertTS: now.Add(-20 * time.Minute).Unix(),
	}
	outcome, state := machine().Step(now, regime.Sideways{IsSideways: false}, state)
	if outcome.Transition != TransitionEnded || !outcome.RunBreakout {
		t.Fatalf("leaving the regime must trigger breakout evaluation, got %+v", outcome)
	}
	if state.WasSideways || state.SidewaysStartTS != 0 || state.LastSidewaysAlertTS != 0 {
		t.Fatalf("regime fields must reset unconditionally on the edge: %+v", state)
	}
}

func TestStepEndSidewaysIdempotent(t *testing.T) {
	now := time.Unix(100_000, 0)
	state := State{WasSideways: true, SidewaysStartTS: now.Add(-time.Hour).Unix()}

	outcome, state := machine().Step(now, regime.Sideways{IsSideways: false}, state)
	if !outcome.RunBreakout {
		t.Fatal("first edge must run the breakout detector")
	}

	// Running the transition again with the already-reset state must not
	// re-emit a breakout.
	outcome, _ = machine().Step(now.Add(time.Minute), regime.Sideways{IsSideways: false}, state)
	if outcome.RunBreakout || outcome.Transition != TransitionSteadyNormal {
		t.Fatalf("second call must be a steady-normal no-op, got %+v", outcome)
	}
}

func TestStepSteadyNormal(t *testing.T) {
	outcome, _ := machine().Step(time.Unix(100_000, 0), regime.Sideways{}, NewState())
	if outcome.Transition != TransitionSteadyNormal || outcome.SkipEvaluator {
		t.Fatalf("normal state must fall through to the evaluator, got %+v", outcome)
	}
}

func TestNormalizeRestoresInvariant(t *testing.T) {
	s := State{WasSideways: true}
	s.Normalize()
	if s.WasSideways {
		t.Fatal("was_sideways without a start timestamp must be dropped")
	}
	if s.Version != stateVersion {
		t.Fatalf("normalize must stamp the schema version, got %d", s.Version)
	}
}
