// Package storage implements the persistence port: per-symbol price history,
// record stats, and alert state, backed by PostgreSQL or local JSON files.
package storage

import (
	"context"
	"errors"
	"time"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/records"
)

// ErrNotConfigured indicates the backing store was not initialised.
var ErrNotConfigured = errors.New("storage: not configured")

// Store is the persistence port consumed by the monitoring cycle. Loads must
// apply forward-compatible defaulting: a missing record yields its documented
// default, never an error.
type Store interface {
	LoadHistory(ctx context.Context, symbol string) (market.History, error)
	AppendAndPrune(ctx context.Context, symbol string, sample market.Sample, retention time.Duration) error
	LoadRecordStats(ctx context.Context, symbol string) (records.Stats, error)
	SaveRecordStats(ctx context.Context, symbol string, stats records.Stats) error
	LoadAlertState(ctx context.Context, symbol string) (alerting.State, error)
	SaveAlertState(ctx context.Context, symbol string, state alerting.State) error
}

// AdvisoryLocker exposes advisory lock helpers for cycle non-overlap across
// processes.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}
