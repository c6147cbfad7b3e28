package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "eventmerge.db" {
		t.Errorf("DBPath = %q, want eventmerge.db", cfg.DBPath)
	}
	if cfg.DBDriver != "sqlite3" {
		t.Errorf("DBDriver = %q, want sqlite3", cfg.DBDriver)
	}
	if cfg.LockBackend != LockLocal {
		t.Errorf("LockBackend = %q, want local", cfg.LockBackend)
	}
	if cfg.LockTTL != 30*time.Second || cfg.LockRetry != 50*time.Millisecond {
		t.Errorf("lock timings = %v/%v", cfg.LockTTL, cfg.LockRetry)
	}
	if cfg.MergeTimeout != 30*time.Second {
		t.Errorf("MergeTimeout = %v, want 30s", cfg.MergeTimeout)
	}
	if cfg.LogFormat != LogText {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if cfg.OTelEndpoint != "" || cfg.TraceFile != "" || cfg.MetricsFile != "" {
		t.Errorf("telemetry outputs should default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EVENTMERGE_DB_PATH", "/tmp/x.db")
	t.Setenv("EVENTMERGE_DB_DRIVER", "sqlite")
	t.Setenv("EVENTMERGE_LOCK_BACKEND", "redis")
	t.Setenv("EVENTMERGE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("EVENTMERGE_MERGE_TIMEOUT", "2s")
	t.Setenv("EVENTMERGE_LOG_LEVEL", "debug")
	t.Setenv("EVENTMERGE_LOG_FORMAT", "json")
	t.Setenv("EVENTMERGE_TRACE_FILE", "/tmp/spans.json")
	t.Setenv("EVENTMERGE_METRICS_FILE", "/tmp/eventmerge.prom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.DBDriver != "sqlite" {
		t.Errorf("db = %q/%q", cfg.DBPath, cfg.DBDriver)
	}
	if cfg.LockBackend != LockRedis || cfg.RedisURL == "" {
		t.Errorf("lock = %q/%q", cfg.LockBackend, cfg.RedisURL)
	}
	if cfg.MergeTimeout != 2*time.Second {
		t.Errorf("MergeTimeout = %v, want 2s", cfg.MergeTimeout)
	}
	if cfg.TraceFile != "/tmp/spans.json" || cfg.MetricsFile != "/tmp/eventmerge.prom" {
		t.Errorf("outputs = %q/%q", cfg.TraceFile, cfg.MetricsFile)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("EVENTMERGE_LOCK_TTL", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DBPath:       "db",
			DBDriver:     "sqlite3",
			LockBackend:  LockLocal,
			LockTTL:      time.Second,
			LockRetry:    time.Millisecond,
			MergeTimeout: time.Second,
			LogLevel:     "info",
			LogFormat:    LogText,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.DBDriver = "postgres" }, "invalid db driver"},
		{"empty path", func(c *Config) { c.DBPath = "" }, "db path"},
		{"redis without url", func(c *Config) { c.LockBackend = LockRedis }, "requires EVENTMERGE_REDIS_URL"},
		{"bad backend", func(c *Config) { c.LockBackend = "etcd" }, "invalid lock backend"},
		{"zero ttl", func(c *Config) { c.LockTTL = 0 }, "must be positive"},
		{"zero timeout", func(c *Config) { c.MergeTimeout = 0 }, "merge timeout"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}
