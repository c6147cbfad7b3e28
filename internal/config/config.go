// Package config loads eventmerge settings from EVENTMERGE_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// Config holds process-wide settings. CLI flags override DBPath and
// DBDriver after Load.
type Config struct {
	DBPath   string `env:"EVENTMERGE_DB_PATH"   envDefault:"eventmerge.db"`
	DBDriver string `env:"EVENTMERGE_DB_DRIVER" envDefault:"sqlite3"`

	LockBackend string        `env:"EVENTMERGE_LOCK_BACKEND" envDefault:"local"`
	RedisURL    string        `env:"EVENTMERGE_REDIS_URL"`
	LockTTL     time.Duration `env:"EVENTMERGE_LOCK_TTL"     envDefault:"30s"`
	LockRetry   time.Duration `env:"EVENTMERGE_LOCK_RETRY"   envDefault:"50ms"`

	MergeTimeout time.Duration `env:"EVENTMERGE_MERGE_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"EVENTMERGE_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"EVENTMERGE_LOG_FORMAT" envDefault:"text"`

	// OTelEndpoint and TraceFile enable span export; both empty disables it.
	OTelEndpoint string `env:"EVENTMERGE_OTEL_ENDPOINT"`
	TraceFile    string `env:"EVENTMERGE_TRACE_FILE"`

	// MetricsFile is rewritten with the Prometheus text format after each
	// command when set.
	MetricsFile string `env:"EVENTMERGE_METRICS_FILE"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations and cross-field requirements.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("invalid db driver %q: must be sqlite3 or sqlite", c.DBDriver)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path must not be empty")
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("lock backend %q requires EVENTMERGE_REDIS_URL", LockRedis)
		}
	default:
		return fmt.Errorf("invalid lock backend %q: must be %s or %s", c.LockBackend, LockLocal, LockRedis)
	}
	if c.LockTTL <= 0 || c.LockRetry <= 0 {
		return fmt.Errorf("lock ttl and retry must be positive")
	}
	if c.MergeTimeout <= 0 {
		return fmt.Errorf("merge timeout must be positive")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogText, LogJSON:
	default:
		return fmt.Errorf("invalid log format %q: must be %s or %s", c.LogFormat, LogText, LogJSON)
	}
	return nil
}

// SlogLevel maps LogLevel (debug, info, warn, error) to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
