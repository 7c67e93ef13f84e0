// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Default event-wait timeouts.
const (
	DefaultEventTimeoutProduction = 30 * time.Second
	DefaultEventTimeout           = 60 * time.Second
)

// Environment variables read in addition to the viper key mapping.
const (
	EnvEventTimeoutMS  = "GATEWAY_EVENT_TIMEOUT_MS"
	EnvLogMovePayloads = "GATEWAY_LOG_MOVE_PAYLOADS"
)

// Config holds all application configuration.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Backend     BackendConfig  `mapstructure:"backend"`
	Events      EventsConfig   `mapstructure:"events"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Nonce       NonceConfig    `mapstructure:"nonce"`
	Database    DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds the client-facing websocket server configuration.
type ServerConfig struct {
	Addr               string  `mapstructure:"addr"`
	ReadLimitBytes     int64   `mapstructure:"read_limit_bytes"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// BackendConfig holds the execution layer endpoints.
type BackendConfig struct {
	URL            string        `mapstructure:"url"`
	UpdatesURL     string        `mapstructure:"updates_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EventsConfig holds event correlation settings.
type EventsConfig struct {
	// TimeoutMS is the raw override; use Config.EventTimeout for the effective value.
	TimeoutMS string `mapstructure:"timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	VerbosePayloads string `mapstructure:"verbose_payloads"`
}

// NonceConfig holds nonce manager settings.
type NonceConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BACKEND_URL, DATABASE_HOST, EVENTS_TIMEOUT_MS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("events.timeout_ms", "EVENTS_TIMEOUT_MS", EnvEventTimeoutMS)
	_ = v.BindEnv("logging.verbose_payloads", "LOGGING_VERBOSE_PAYLOADS", EnvLogMovePayloads)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Backend.UpdatesURL == "" {
		cfg.Backend.UpdatesURL = deriveUpdatesURL(cfg.Backend.URL)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_limit_bytes", 64*1024)
	v.SetDefault("server.rate_limit_per_second", 10)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.updates_url", "")
	v.SetDefault("backend.request_timeout", "10s")

	v.SetDefault("events.timeout_ms", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.verbose_payloads", "")

	v.SetDefault("nonce.lock_timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
}

// IsProduction reports whether the gateway runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// EventTimeout returns the effective event-wait timeout.
// An override that is not a finite number >= 0 is ignored with a warning.
func (c *Config) EventTimeout() time.Duration {
	def := DefaultEventTimeout
	if c.IsProduction() {
		def = DefaultEventTimeoutProduction
	}
	return ParseTimeoutMS(c.Events.TimeoutMS, def)
}

// ParseTimeoutMS parses a millisecond override, falling back to def when raw
// is empty, not a number, infinite, or negative.
func ParseTimeoutMS(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		log.Warn().Str("value", raw).Msg("Ignoring invalid event timeout override")
		return def
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// VerbosePayloads reports whether submitted move payloads are logged.
func (c *Config) VerbosePayloads() bool {
	return ParseToggle(c.Logging.VerbosePayloads)
}

// ParseToggle accepts 1, true, yes and on, case-insensitive.
func ParseToggle(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func deriveUpdatesURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/")
}
