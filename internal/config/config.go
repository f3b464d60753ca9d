package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"crypto-anomaly-monitor/internal/cache"
	"crypto-anomaly-monitor/internal/logging"
	"crypto-anomaly-monitor/internal/storage"
)

// Alert strategy selectors.
const (
	StrategyMovingAverage = "moving_average"
	StrategyRecords       = "records"
	StrategyBoth          = "both"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Logging   logging.Config         `mapstructure:"logging"`
	Storage   StorageConfig          `mapstructure:"storage"`
	Database  storage.PostgresConfig `mapstructure:"database"`
	Redis     cache.RedisConfig      `mapstructure:"redis"`
	Scheduler SchedulerConfig        `mapstructure:"scheduler"`
	Market    MarketConfig           `mapstructure:"market"`
	Sentiment SentimentConfig        `mapstructure:"sentiment"`
	Monitor   MonitorConfig          `mapstructure:"monitor"`
	Alerting  AlertingConfig         `mapstructure:"alerting"`
	Metrics   MetricsConfig          `mapstructure:"metrics"`
	Export    ExportConfig           `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToTick     bool          `mapstructure:"align_to_tick"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// MarketConfig covers market-data providers.
type MarketConfig struct {
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Chainlink ChainlinkConfig `mapstructure:"chainlink"`
}

// CoinGeckoConfig parameterises the primary provider.
type CoinGeckoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RatePerMinute  int           `mapstructure:"rate_per_minute"`
}

// ChainlinkConfig parameterises the on-chain fallback provider.
type ChainlinkConfig struct {
	RPCURL         string            `mapstructure:"rpc_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	Feeds          map[string]string `mapstructure:"feeds"`
}

// SentimentConfig toggles alert enrichment.
type SentimentConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MonitorConfig carries the detection thresholds.
type MonitorConfig struct {
	Symbols             []string      `mapstructure:"symbols"`
	Strategy            string        `mapstructure:"strategy"`
	HistoryDays         int           `mapstructure:"history_days"`
	MovingAverageHours  int           `mapstructure:"moving_average_hours"`
	MinSamples          int           `mapstructure:"min_samples"`
	StdDevThreshold     float64       `mapstructure:"stddev_threshold"`
	MinVolumeZ          float64       `mapstructure:"min_volume_z"`
	ExtremeThreshold    float64       `mapstructure:"extreme_threshold"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	SidewaysWindow      time.Duration `mapstructure:"sideways_window"`
	SidewaysThreshold   float64       `mapstructure:"sideways_threshold"`
	SidewaysMinDuration time.Duration `mapstructure:"sideways_min_duration"`
	SidewaysInterval    time.Duration `mapstructure:"sideways_alert_interval"`
	BreakoutMinPct      float64       `mapstructure:"breakout_min_pct"`
	PatternMinPoints    int           `mapstructure:"pattern_min_points"`
	RecordRecency       time.Duration `mapstructure:"record_recency"`
	RSIPeriod           int           `mapstructure:"rsi_period"`
	VWAPHours           int           `mapstructure:"vwap_hours"`
	// VariationThresholds uses the SYMBOL:pct,SYMBOL:pct form.
	VariationThresholds string `mapstructure:"variation_thresholds"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptomon")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.data_dir", "local_data")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_tick", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63727970))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("market.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.coingecko.request_timeout", "10s")
	v.SetDefault("market.coingecko.user_agent", "cryptomon/1.0")
	v.SetDefault("market.coingecko.rate_per_minute", 30)
	v.SetDefault("market.chainlink.request_timeout", "10s")

	v.SetDefault("sentiment.enabled", false)
	v.SetDefault("sentiment.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sentiment.request_timeout", "10s")

	v.SetDefault("monitor.symbols", []string{"BTCUSDT"})
	v.SetDefault("monitor.strategy", StrategyBoth)
	v.SetDefault("monitor.history_days", 7)
	v.SetDefault("monitor.moving_average_hours", 24)
	v.SetDefault("monitor.min_samples", 10)
	v.SetDefault("monitor.stddev_threshold", 2.0)
	v.SetDefault("monitor.min_volume_z", 1.0)
	v.SetDefault("monitor.extreme_threshold", 3.0)
	v.SetDefault("monitor.cooldown", "30m")
	v.SetDefault("monitor.sideways_window", "60m")
	v.SetDefault("monitor.sideways_threshold", 1.0)
	v.SetDefault("monitor.sideways_min_duration", "30m")
	v.SetDefault("monitor.sideways_alert_interval", "30m")
	v.SetDefault("monitor.breakout_min_pct", 1.0)
	v.SetDefault("monitor.pattern_min_points", 3)
	v.SetDefault("monitor.record_recency", "2h")
	v.SetDefault("monitor.rsi_period", 14)
	v.SetDefault("monitor.vwap_hours", 24)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9109")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("redis.ttl", "48h")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Monitor.Symbols) == 0 {
		return fmt.Errorf("monitor.symbols must not be empty")
	}
	switch c.Monitor.Strategy {
	case StrategyMovingAverage, StrategyRecords, StrategyBoth:
	default:
		return fmt.Errorf("monitor.strategy must be one of %s, %s, %s", StrategyMovingAverage, StrategyRecords, StrategyBoth)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Monitor.HistoryDays <= 0 {
		return fmt.Errorf("monitor.history_days must be greater than zero")
	}
	if c.Monitor.StdDevThreshold <= 0 {
		return fmt.Errorf("monitor.stddev_threshold must be greater than zero")
	}
	if c.Monitor.SidewaysThreshold <= 0 {
		return fmt.Errorf("monitor.sideways_threshold must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %s or %s", BackendFile, BackendPostgres)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if _, err := ParseVariationThresholds(c.Monitor.VariationThresholds); err != nil {
		return err
	}
	return nil
}

// ParseVariationThresholds parses the SYMBOL:pct,SYMBOL:pct form into a map.
// Entries without a colon are skipped, matching the legacy format's leniency.
func ParseVariationThresholds(raw string) (map[string]float64, error) {
	result := make(map[string]float64)
	if raw == "" {
		return result, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, ":") {
			continue
		}
		pieces := strings.SplitN(part, ":", 2)
		value, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid variation threshold %q: %w", part, err)
		}
		result[strings.ToUpper(strings.TrimSpace(pieces[0]))] = value
	}
	return result, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
