package storage

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/records"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestFileStoreHistoryAppendAndPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := int64(1_000_000)

	old := market.Sample{Price: 90, Volume: 10, Timestamp: base}
	fresh := market.Sample{Price: 100, Volume: 20, Timestamp: base + 8*24*3600}

	if err := store.AppendAndPrune(ctx, "BTCUSDT", old, 7*24*time.Hour); err != nil {
		t.Fatalf("append old: %v", err)
	}
	if err := store.AppendAndPrune(ctx, "BTCUSDT", fresh, 7*24*time.Hour); err != nil {
		t.Fatalf("append fresh: %v", err)
	}

	history, err := store.LoadHistory(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("sample older than the window should be pruned, got %d samples", len(history))
	}
	if history[0].Timestamp != fresh.Timestamp {
		t.Fatalf("wrong surviving sample: %+v", history[0])
	}
}

func TestFileStoreHistoryMissing(t *testing.T) {
	store := newTestStore(t)
	history, err := store.LoadHistory(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("missing history must not error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}

func TestFileStoreRecordStatsDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.LoadRecordStats(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("missing record stats must not error: %v", err)
	}
	if !math.IsInf(stats.AllTimeLow, 1) {
		t.Fatalf("default low must be +Inf, got %f", stats.AllTimeLow)
	}

	stats, _, _ = records.Update(stats, 50, 1234)
	if err := store.SaveRecordStats(ctx, "BTCUSDT", stats); err != nil {
		t.Fatalf("save record stats: %v", err)
	}

	loaded, err := store.LoadRecordStats(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("load record stats: %v", err)
	}
	if loaded.AllTimeHigh != 50 || loaded.AllTimeLow != 50 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestFileStoreAlertStateMigration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Legacy blob: no version, no sideways fields.
	legacy := []byte(`{"last_alert_ts": 999, "last_price_z": 2.5}`)
	path := filepath.Join(store.dir, "BTCUSDT_alert_state.json")
	if err := os.WriteFile(path, legacy, 0o644); err != nil {
		t.Fatalf("seed legacy blob: %v", err)
	}

	state, err := store.LoadAlertState(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("load alert state: %v", err)
	}
	if state.LastAlertTS != 999 || state.LastPriceZ != 2.5 {
		t.Fatalf("legacy fields lost: %+v", state)
	}
	if state.WasSideways || state.SidewaysStartTS != 0 {
		t.Fatalf("missing fields must default: %+v", state)
	}
}

func TestFileStoreAlertStateInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// was_sideways without a start timestamp violates the state invariant and
	// must be dropped on load.
	corrupt := []byte(`{"was_sideways": true}`)
	path := filepath.Join(store.dir, "SOLUSDT_alert_state.json")
	if err := os.WriteFile(path, corrupt, 0o644); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	state, err := store.LoadAlertState(ctx, "SOLUSDT")
	if err != nil {
		t.Fatalf("load alert state: %v", err)
	}
	if state.WasSideways {
		t.Fatal("invariant violation must be repaired on load")
	}
}

func TestFileStoreAlertStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := alerting.NewState()
	state.LastAlertTS = 5000
	state.WasSideways = true
	state.SidewaysStartTS = 4000

	if err := store.SaveAlertState(ctx, "ETHUSDT", state); err != nil {
		t.Fatalf("save alert state: %v", err)
	}
	loaded, err := store.LoadAlertState(ctx, "ETHUSDT")
	if err != nil {
		t.Fatalf("load alert state: %v", err)
	}
	if loaded != state {
		t.Fatalf("round trip mismatch: %+v != %+v", loaded, state)
	}
}
