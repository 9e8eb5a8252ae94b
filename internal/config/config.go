package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stablecoin-watch/internal/logging"
)

// Source kinds understood by the ingestor.
const (
	SourceKindAggregate = "aggregate"
	SourceKindP2P       = "p2p"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	HighWater HighWaterConfig `mapstructure:"highwater"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// IngestConfig drives the one-shot quote collection.
type IngestConfig struct {
	Coin           string         `mapstructure:"coin"`
	Fiat           string         `mapstructure:"fiat"`
	BaseURL        string         `mapstructure:"base_url"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	UserAgent      string         `mapstructure:"user_agent"`
	Concurrency    int            `mapstructure:"concurrency"`
	LockKey        int64          `mapstructure:"advisory_lock_key"`
	Sources        []SourceConfig `mapstructure:"sources"`
}

// SourceConfig describes one quoted exchange.
type SourceConfig struct {
	Exchange string `mapstructure:"exchange"`
	Kind     string `mapstructure:"kind"`
	Path     string `mapstructure:"path"`
	BidPath  string `mapstructure:"bid_path"`
	AskPath  string `mapstructure:"ask_path"`
}

// BroadcastConfig governs the leaderboard loop.
type BroadcastConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	WindowSize   int           `mapstructure:"window_size"`
	Freshness    time.Duration `mapstructure:"freshness"`
	TopK         int           `mapstructure:"top_k"`
}

// HighWaterConfig locates the persisted all-time-high state.
type HighWaterConfig struct {
	Path string `mapstructure:"path"`
}

// AlertingConfig defines message routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BotToken      string        `mapstructure:"bot_token"`
	BotTokenParam string        `mapstructure:"bot_token_param"`
	ChatID        string        `mapstructure:"chat_id"`
	APIBase       string        `mapstructure:"api_base"`
	ParseMode     string        `mapstructure:"parse_mode"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, .env, environment, and defaults.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STABLEWATCH")
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
	v.SetDefault("app.name", "stablewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.compress", true)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("ingest.coin", "USDT")
	v.SetDefault("ingest.fiat", "ARS")
	v.SetDefault("ingest.base_url", "https://criptoya.com/api")
	v.SetDefault("ingest.request_timeout", "10s")
	v.SetDefault("ingest.user_agent", "stablewatch/1.0")
	v.SetDefault("ingest.concurrency", 8)
	v.SetDefault("ingest.advisory_lock_key", 0x75734454)
	v.SetDefault("ingest.sources", DefaultSources())

	v.SetDefault("broadcast.interval", "5m")
	v.SetDefault("broadcast.startup_delay", "0s")
	v.SetDefault("broadcast.window_size", 100)
	v.SetDefault("broadcast.freshness", "2m")
	v.SetDefault("broadcast.top_k", 3)

	v.SetDefault("highwater.path", "max_value.json")

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.parse_mode", "HTML")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

// DefaultSources lists the exchanges quoted when no source list is configured.
func DefaultSources() []map[string]any {
	aggregate := []string{
		"tiendacrypto/usdt/ars",
		"buenbit/usdt/ars",
		"decrypto/usdt/ars/1",
		"satoshitango/usdt/ars",
		"letsbit/usdt/ars/0.1",
		"bitso/usdt/ars/500",
		"lemoncash/usdt",
		"bitmonedero/usdt/ars/0.02",
		"kriptonmarket/usdt/ars/100",
		"latamex/usdt",
		"copter/usdt/ars/0.1",
		"belo/usdt/ars/0.5",
		"fiwind/usdt/ars/0.1",
	}

	sources := make([]map[string]any, 0, len(aggregate)+1)
	for _, path := range aggregate {
		sources = append(sources, map[string]any{
			"kind": SourceKindAggregate,
			"path": path,
		})
	}
	sources = append(sources, map[string]any{
		"exchange": "binance",
		"kind":     SourceKindP2P,
		"bid_path": "binancep2p/sell/usdt/ars/5",
		"ask_path": "binancep2p/buy/usdt/ars/5",
	})
	return sources
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Broadcast.Interval <= 0 {
		return fmt.Errorf("broadcast.interval must be greater than zero")
	}
	if c.Broadcast.WindowSize <= 0 {
		return fmt.Errorf("broadcast.window_size must be greater than zero")
	}
	if c.Broadcast.Freshness <= 0 {
		return fmt.Errorf("broadcast.freshness must be greater than zero")
	}
	if c.Broadcast.TopK <= 0 {
		return fmt.Errorf("broadcast.top_k must be greater than zero")
	}
	if strings.TrimSpace(c.Ingest.Coin) == "" {
		return fmt.Errorf("ingest.coin must be set")
	}
	if strings.TrimSpace(c.HighWater.Path) == "" {
		return fmt.Errorf("highwater.path must be set")
	}
	for i, src := range c.Ingest.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("ingest.sources[%d]: %w", i, err)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" && c.Alerting.Telegram.BotTokenParam == "" {
			return fmt.Errorf("alerting.telegram.bot_token 或 bot_token_param 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceKindAggregate:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("aggregate source requires path")
		}
	case SourceKindP2P:
		if strings.TrimSpace(s.BidPath) == "" || strings.TrimSpace(s.AskPath) == "" {
			return fmt.Errorf("p2p source requires bid_path and ask_path")
		}
		if strings.TrimSpace(s.Exchange) == "" {
			return fmt.Errorf("p2p source requires exchange")
		}
	default:
		return fmt.Errorf("unknown source kind %q", s.Kind)
	}
	return nil
}

// ExchangeName returns the configured exchange or, failing that, the first path segment.
func (s SourceConfig) ExchangeName() string {
	if name := strings.TrimSpace(s.Exchange); name != "" {
		return strings.ToLower(name)
	}
	path := strings.Trim(s.Path, "/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return strings.ToLower(path)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
