package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-anomaly-monitor/internal/alerting"
	"crypto-anomaly-monitor/internal/market"
	"crypto-anomaly-monitor/internal/records"
)

const (
	insertSampleSQL = `INSERT INTO samples (symbol, ts, price, volume)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (symbol, ts) DO UPDATE
    SET price = EXCLUDED.price,
        volume = EXCLUDED.volume;`

	pruneSamplesSQL = `DELETE FROM samples WHERE symbol = $1 AND ts < $2;`

	listHistorySQL = `SELECT ts, price, volume FROM samples
    WHERE symbol = $1
    ORDER BY ts;`

	latestSampleTSSQL = `SELECT COALESCE(MAX(ts), 0) FROM samples WHERE symbol = $1;`

	loadRecordStatsSQL = `SELECT data FROM record_stats WHERE symbol = $1;`

	saveRecordStatsSQL = `INSERT INTO record_stats (symbol, data, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (symbol) DO UPDATE
    SET data = EXCLUDED.data, updated_at = now();`

	loadAlertStateSQL = `SELECT data FROM alert_states WHERE symbol = $1;`

	saveAlertStateSQL = `INSERT INTO alert_states (symbol, data, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (symbol) DO UPDATE
    SET data = EXCLUDED.data, updated_at = now();`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists monitor state in PostgreSQL. Record stats and alert
// state travel as JSON blobs so schema evolution rides on the structs'
// defaulting rather than column migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// LoadHistory returns the retained samples for a symbol in timestamp order.
func (s *PostgresStore) LoadHistory(ctx context.Context, symbol string) (market.History, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listHistorySQL, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list history: %w", queryErr)
	}
	defer rows.Close()

	history := make(market.History, 0)
	for rows.Next() {
		var sample market.Sample
		if err := rows.Scan(&sample.Timestamp, &sample.Price, &sample.Volume); err != nil {
			return nil, err
		}
		history = append(history, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return history, nil
}

// AppendAndPrune stores the sample and discards entries older than the
// retention window measured from the newest retained timestamp.
func (s *PostgresStore) AppendAndPrune(ctx context.Context, symbol string, sample market.Sample, retention time.Duration) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, insertSampleSQL, symbol, sample.Timestamp, sample.Price, sample.Volume); execErr != nil {
		return fmt.Errorf("insert sample: %w", execErr)
	}

	var latest int64
	if scanErr := pool.QueryRow(ctx, latestSampleTSSQL, symbol).Scan(&latest); scanErr != nil {
		return fmt.Errorf("find latest sample: %w", scanErr)
	}

	cutoff := latest - int64(retention.Seconds())
	if _, execErr := pool.Exec(ctx, pruneSamplesSQL, symbol, cutoff); execErr != nil {
		return fmt.Errorf("prune samples: %w", execErr)
	}
	return nil
}

// LoadRecordStats returns the record state, defaulting when absent.
func (s *PostgresStore) LoadRecordStats(ctx context.Context, symbol string) (records.Stats, error) {
	pool, err := s.getPool()
	if err != nil {
		return records.NewStats(), err
	}

	var data []byte
	scanErr := pool.QueryRow(ctx, loadRecordStatsSQL, symbol).Scan(&data)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return records.NewStats(), nil
	}
	if scanErr != nil {
		return records.NewStats(), fmt.Errorf("load record stats: %w", scanErr)
	}

	var stats records.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return records.NewStats(), fmt.Errorf("decode record stats: %w", err)
	}
	return stats, nil
}

// SaveRecordStats upserts the record state.
func (s *PostgresStore) SaveRecordStats(ctx context.Context, symbol string, stats records.Stats) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode record stats: %w", err)
	}
	if _, execErr := pool.Exec(ctx, saveRecordStatsSQL, symbol, data); execErr != nil {
		return fmt.Errorf("save record stats: %w", execErr)
	}
	return nil
}

// LoadAlertState returns the alert state, defaulting and migrating when
// absent or stale.
func (s *PostgresStore) LoadAlertState(ctx context.Context, symbol string) (alerting.State, error) {
	pool, err := s.getPool()
	if err != nil {
		return alerting.NewState(), err
	}

	var data []byte
	scanErr := pool.QueryRow(ctx, loadAlertStateSQL, symbol).Scan(&data)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return alerting.NewState(), nil
	}
	if scanErr != nil {
		return alerting.NewState(), fmt.Errorf("load alert state: %w", scanErr)
	}

	var state alerting.State
	if err := json.Unmarshal(data, &state); err != nil {
		return alerting.NewState(), fmt.Errorf("decode alert state: %w", err)
	}
	state.Normalize()
	return state, nil
}

// SaveAlertState upserts the alert state.
func (s *PostgresStore) SaveAlertState(ctx context.Context, symbol string, state alerting.State) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}
	if _, execErr := pool.Exec(ctx, saveAlertStateSQL, symbol, data); execErr != nil {
		return fmt.Errorf("save alert state: %w", execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

var _ Store = (*PostgresStore)(nil)
var _ AdvisoryLocker = (*PostgresStore)(nil)
