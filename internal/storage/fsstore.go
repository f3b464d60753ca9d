package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/records"
)

// FileStore keeps per-symbol JSON files under a data directory. It is the
// local-mode counterpart of the PostgreSQL store and shares its defaulting
// behaviour for missing records.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage: data dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) historyPath(symbol string) string {
	return filepath.Join(s.dir, symbol+"_history.json")
}

func (s *FileStore) recordsPath(symbol string) string {
	return filepath.Join(s.dir, symbol+"_records.json")
}

func (s *FileStore) alertStatePath(symbol string) string {
	return filepath.Join(s.dir, symbol+"_alert_state.json")
}

// writeJSON writes via a temp file and rename so readers never observe a
// partial blob.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// LoadHistory returns the retained samples for a symbol in timestamp order.
func (s *FileStore) LoadHistory(ctx context.Context, symbol string) (market.History, error) {
	var history market.History
	found, err := readJSON(s.historyPath(symbol), &history)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !found {
		return market.History{}, nil
	}
	history.Sort()
	return history, nil
}

// AppendAndPrune stores the sample and drops entries older than the retention
// window measured from the newest retained timestamp.
func (s *FileStore) AppendAndPrune(ctx context.Context, symbol string, sample market.Sample, retention time.Duration) error {
	history, err := s.LoadHistory(ctx, symbol)
	if err != nil {
		return err
	}
	history = append(history, sample)

	latest, _ := history.Latest()
	cutoff := latest.Timestamp - int64(retention.Seconds())
	history = history.Since(cutoff)
	history.Sort()

	if err := writeJSON(s.historyPath(symbol), history); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// LoadRecordStats returns the record state, defaulting when absent.
func (s *FileStore) LoadRecordStats(ctx context.Context, symbol string) (records.Stats, error) {
	stats := records.NewStats()
	found, err := readJSON(s.recordsPath(symbol), &stats)
	if err != nil {
		return records.NewStats(), fmt.Errorf("load record stats: %w", err)
	}
	if !found {
		return records.NewStats(), nil
	}
	return stats, nil
}

// SaveRecordStats writes the record state.
func (s *FileStore) SaveRecordStats(ctx context.Context, symbol string, stats records.Stats) error {
	if err := writeJSON(s.recordsPath(symbol), stats); err != nil {
		return fmt.Errorf("save record stats: %w", err)
	}
	return nil
}

// LoadAlertState returns the alert state, defaulting and migrating when
// absent or stale.
func (s *FileStore) LoadAlertState(ctx context.Context, symbol string) (alerting.State, error) {
	state := alerting.NewState()
	found, err := readJSON(s.alertStatePath(symbol), &state)
	if err != nil {
		return alerting.NewState(), fmt.Errorf("load alert state: %w", err)
	}
	if !found {
		return alerting.NewState(), nil
	}
	state.Normalize()
	return state, nil
}

// SaveAlertState writes the alert state.
func (s *FileStore) SaveAlertState(ctx context.Context, symbol string, state alerting.State) error {
	if err := writeJSON(s.alertStatePath(symbol), state); err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
