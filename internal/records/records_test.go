package records

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestUpdateFirstObservation(t *testing.T) {
	stats, isNewHigh, isNewLow := Update(NewStats(), 50, 1000)
	if isNewLow {
		t.Fatal("seeding the low must not count as a new low")
	}
	if !isNewHigh {
		t.Fatal("first price above the zero high should be a new high")
	}
	if stats.AllTimeLow != 50 || stats.AllTimeHigh != 50 {
		t.Fatalf("records not seeded: %+v", stats)
	}
	if stats.LastATLTimestamp != 0 {
		t.Fatal("ATL timestamp must only be stamped on a genuine new low")
	}
	if stats.LastATHTimestamp != 1000 {
		t.Fatalf("ATH timestamp should be stamped, got %d", stats.LastATHTimestamp)
	}
}

func TestUpdateGenuineNewLow(t *testing.T) {
	stats, _, _ := Update(NewStats(), 50, 1000)
	stats, isNewHigh, isNewLow := Update(stats, 40, 2000)
	if !isNewLow || isNewHigh {
		t.Fatalf("40 after 50 should be a new low only, got high=%v low=%v", isNewHigh, isNewLow)
	}
	if stats.AllTimeLow != 40 || stats.LastATLTimestamp != 2000 {
		t.Fatalf("low not recorded: %+v", stats)
	}
}

func TestUpdateMonotonic(t *testing.T) {
	stats, _, _ := Update(NewStats(), 50, 1000)
	stats, isNewHigh, isNewLow := Update(stats, 50, 2000)
	if isNewHigh || isNewLow {
		t.Fatal("equal price should fire neither record")
	}
	if stats.AllTimeHigh != 50 || stats.AllTimeLow != 50 {
		t.Fatalf("records must not move on equal price: %+v", stats)
	}
}

func TestStatsJSONRoundTripInfSentinel(t *testing.T) {
	data, err := json.Marshal(NewStats())
	if err != nil {
		t.Fatalf("marshal with +Inf low should succeed: %v", err)
	}

	var loaded Stats
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !math.IsInf(loaded.AllTimeLow, 1) {
		t.Fatalf("absent low must default to +Inf, got %f", loaded.AllTimeLow)
	}
}

func TestStatsJSONDefaulting(t *testing.T) {
	// A legacy record that predates the timestamp fields.
	var loaded Stats
	if err := json.Unmarshal([]byte(`{"all_time_high": 120.5}`), &loaded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if loaded.AllTimeHigh != 120.5 {
		t.Fatalf("high not loaded: %f", loaded.AllTimeHigh)
	}
	if !math.IsInf(loaded.AllTimeLow, 1) {
		t.Fatal("missing low must default to +Inf")
	}
	if loaded.LastATHTimestamp != 0 || loaded.LastATLTimestamp != 0 {
		t.Fatal("missing timestamps must default to zero")
	}
}

func TestCheckRecency(t *testing.T) {
	now := time.Unix(10_000, 0)
	stats := Stats{
		AllTimeHigh:      100,
		AllTimeLow:       50,
		LastATHTimestamp: 10_000 - 1800, // 30 minutes ago
		LastATLTimestamp: 10_000 - 3*3600,
	}
	r := CheckRecency(stats, now, 2*time.Hour)
	if !r.ATHRecent {
		t.Fatal("ATH from 30 minutes ago should be recent in a 2h window")
	}
	if r.ATLRecent {
		t.Fatal("ATL from 3 hours ago should not be recent in a 2h window")
	}
	if r.ATHMinutesAgo != 30 {
		t.Fatalf("expected 30 minutes ago, got %f", r.ATHMinutesAgo)
	}
}

func TestCheckRecencyUnset(t *testing.T) {
	r := CheckRecency(NewStats(), time.Unix(5000, 0), 2*time.Hour)
	if r.ATHRecent || r.ATLRecent {
		t.Fatal("unset records must not be recent")
	}
}
