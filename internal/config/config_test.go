package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Monitor.Strategy != StrategyBoth {
		t.Fatalf("strategy = %q, want %q", cfg.Monitor.Strategy, StrategyBoth)
	}
	if cfg.Monitor.HistoryDays != 7 {
		t.Fatalf("history_days = %d, want 7", cfg.Monitor.HistoryDays)
	}
	if cfg.Monitor.Cooldown != 30*time.Minute {
		t.Fatalf("cooldown = %v, want 30m", cfg.Monitor.Cooldown)
	}
	if cfg.Monitor.StdDevThreshold != 2.0 || cfg.Monitor.MinVolumeZ != 1.0 || cfg.Monitor.ExtremeThreshold != 3.0 {
		t.Fatalf("unexpected threshold defaults: %+v", cfg.Monitor)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
monitor:
  symbols: [BTCUSDT, ETHUSDT]
  strategy: records
  cooldown: 45m
  variation_thresholds: "BTCUSDT:2.5,ETHUSDT:3"
storage:
  backend: file
  data_dir: /tmp/data
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Monitor.Symbols) != 2 {
		t.Fatalf("symbols = %v", cfg.Monitor.Symbols)
	}
	if cfg.Monitor.Strategy != StrategyRecords {
		t.Fatalf("strategy = %q", cfg.Monitor.Strategy)
	}
	if cfg.Monitor.Cooldown != 45*time.Minute {
		t.Fatalf("cooldown = %v", cfg.Monitor.Cooldown)
	}
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Monitor.Strategy = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown strategy")
	}
}

func TestValidateTelegramRequiresCredentials(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing telegram credentials")
	}
}

func TestParseVariationThresholds(t *testing.T) {
	got, err := ParseVariationThresholds("BTCUSDT:2.5, ethusdt:3 ,junk")
	if err != nil {
		t.Fatalf("ParseVariationThresholds: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got["BTCUSDT"] != 2.5 {
		t.Fatalf("BTCUSDT = %v, want 2.5", got["BTCUSDT"])
	}
	if got["ETHUSDT"] != 3 {
		t.Fatalf("ETHUSDT = %v, want 3", got["ETHUSDT"])
	}

	if _, err := ParseVariationThresholds("BTCUSDT:abc"); err == nil {
		t.Fatal("expected error for non-numeric threshold")
	}
}
