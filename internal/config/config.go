package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ath-watcher/internal/logging"
)

// PollPeriodEnv overrides scheduler.interval with a whole number of seconds.
const PollPeriodEnv = "POLL_PERIOD"

// DefaultPollPeriod applies when neither POLL_PERIOD nor a config value is set.
const DefaultPollPeriod = 30 * time.Second

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Notification channels.
const (
	ChannelNtfy     = "ntfy"
	ChannelTelegram = "telegram"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Store     StoreConfig     `mapstructure:"store"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
	TickTimeout   time.Duration `mapstructure:"tick_timeout"`
}

// FeedConfig describes the public price feed.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	URL            string        `mapstructure:"url" validate:"omitempty,url"`
	Asset          string        `mapstructure:"asset" validate:"required"`
	Currency       string        `mapstructure:"currency" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	StrictFields   bool          `mapstructure:"strict_fields"`
}

// StoreConfig selects and parameterises the ATH store backend.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend" validate:"oneof=file postgres redis"`
	Path     string         `mapstructure:"path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig encapsulates PostgreSQL connectivity.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig encapsulates Redis connectivity.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Channels []string       `mapstructure:"channels" validate:"dive,oneof=ntfy telegram"`
	Ntfy     NtfyConfig     `mapstructure:"ntfy"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// NtfyConfig describes the ntfy push endpoint.
type NtfyConfig struct {
	URL            string        `mapstructure:"url" validate:"omitempty,url"`
	Title          string        `mapstructure:"title"`
	Tags           []string      `mapstructure:"tags"`
	Priority       string        `mapstructure:"priority"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// HTTPConfig controls the optional status listener.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("ATHWATCHER")
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

	if raw, ok := os.LookupEnv(PollPeriodEnv); ok {
		interval, err := ParsePollPeriod(raw)
		if err != nil {
			return nil, err
		}
		cfg.Scheduler.Interval = interval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParsePollPeriod converts a POLL_PERIOD value in seconds into a duration.
// Zero is rejected.
func ParsePollPeriod(raw string) (time.Duration, error) {
	secs, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a non-negative integer number of seconds, got %q", PollPeriodEnv, raw)
	}
	if secs == 0 {
		return 0, fmt.Errorf("%s=0 is not supported: the poll period must be at least 1 second", PollPeriodEnv)
	}
	if secs > uint64(math.MaxInt64/int64(time.Second)) {
		return 0, fmt.Errorf("%s out of range: %d", PollPeriodEnv, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
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
	v.SetDefault("app.name", "athwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", DefaultPollPeriod.String())
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.tick_timeout", "0s")

	v.SetDefault("feed.base_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.asset", "bitcoin")
	v.SetDefault("feed.currency", "usd")
	v.SetDefault("feed.request_timeout", "10s")
	v.SetDefault("feed.user_agent", "athwatcher/1.0")
	v.SetDefault("feed.strict_fields", false)

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "last_ath.txt")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_open_conns", 4)
	v.SetDefault("store.postgres.max_idle_conns", 1)
	v.SetDefault("store.postgres.conn_max_lifetime", "30m")
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "athwatcher")

	v.SetDefault("alerting.channels", []string{ChannelNtfy})
	v.SetDefault("alerting.ntfy.url", "https://ntfy.sh/bitcoin_ath")
	v.SetDefault("alerting.ntfy.title", "")
	v.SetDefault("alerting.ntfy.tags", []string{})
	v.SetDefault("alerting.ntfy.priority", "")
	v.SetDefault("alerting.ntfy.request_timeout", "10s")
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("http.listen", "")
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

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.StartupDelay < 0 || c.Scheduler.TickTimeout < 0 {
		return fmt.Errorf("scheduler durations cannot be negative")
	}
	if c.Feed.RequestTimeout < 0 || c.Alerting.Ntfy.RequestTimeout < 0 {
		return fmt.Errorf("request timeouts cannot be negative")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	}

	for _, ch := range c.Alerting.Channels {
		switch ch {
		case ChannelNtfy:
			if c.Alerting.Ntfy.URL == "" {
				return fmt.Errorf("alerting.ntfy.url is required when the ntfy channel is enabled")
			}
		case ChannelTelegram:
			if c.Alerting.Telegram.BotToken == "" || c.Alerting.Telegram.ChatID == "" {
				return fmt.Errorf("启用 telegram 通道时 alerting.telegram.bot_token 与 chat_id 必须配置")
			}
		}
	}
	return nil
}

// FeedURL returns the configured feed URL or derives one from base URL, asset and currency.
func (c *Config) FeedURL() string {
	if c.Feed.URL != "" {
		return c.Feed.URL
	}
	return fmt.Sprintf("%s?ids=%s&vs_currencies=%s", strings.TrimRight(c.Feed.BaseURL, "/"), c.Feed.Asset, c.Feed.Currency)
}

// TickTimeout bounds a single cycle, defaulting to the poll interval.
func (c *Config) TickTimeout() time.Duration {
	if c.Scheduler.TickTimeout > 0 {
		return c.Scheduler.TickTimeout
	}
	return c.Scheduler.Interval
}
