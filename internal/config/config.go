// Package config loads the environment-variable-driven settings for each
// of the three binaries, mirroring the teacher's one-struct-per-service,
// LoadFromEnv/Validate shape.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ParseLogLevel maps the validated LOG_LEVEL string to a slog.Level,
// defaulting to Info for any value Validate would have already rejected.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CoordinatorConfig configures cmd/coordinator, the fan-out entry point.
type CoordinatorConfig struct {
	Port      int    `env:"COORDINATOR_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	APIKey    string `env:"API_KEY"`
	InputDir  string `env:"INPUT_DIR" envDefault:"./input"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./output"`
	LogsDir   string `env:"LOGS_DIR" envDefault:"./logs"`

	// WorkerTargets is the fixed pool of worker endpoints fanned out to,
	// "algorithm_name=url" pairs (e.g.
	// "layering=http://worker-layering:8081,wash_trading=http://worker-wash:8081").
	// A single-entry pool is a valid, if degenerate, deployment.
	WorkerTargets []string `env:"WORKER_TARGETS" envSeparator:","`
	AggregatorURL string   `env:"AGGREGATOR_URL" envDefault:"http://localhost:8082"`

	DeadlineSec     int   `env:"DEADLINE_SEC" envDefault:"30"`
	RetryMax        int   `env:"RETRY_MAX" envDefault:"3"`
	RetryBaseMS     int   `env:"RETRY_BASE_MS" envDefault:"200"`
	MaxRequestBytes int64 `env:"MAX_REQUEST_BYTES" envDefault:"10485760"`

	PrometheusPort int `env:"PROMETHEUS_PORT" envDefault:"9090"`

	Deadline  time.Duration `env:"-"`
	RetryBase time.Duration `env:"-"`
}

func LoadCoordinatorConfig() (*CoordinatorConfig, error) {
	cfg := &CoordinatorConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ""}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	cfg.Deadline = time.Duration(cfg.DeadlineSec) * time.Second
	cfg.RetryBase = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	return cfg, nil
}

// WorkerTarget is one parsed "name=url" entry of WorkerTargets.
type WorkerTarget struct {
	Name string
	URL  string
}

// ParseWorkerTargets splits each WorkerTargets entry on its first '='.
// An entry with no '=' or an empty name/URL is a configuration error.
func (c *CoordinatorConfig) ParseWorkerTargets() ([]WorkerTarget, error) {
	targets := make([]WorkerTarget, 0, len(c.WorkerTargets))
	for _, raw := range c.WorkerTargets {
		idx := strings.Index(raw, "=")
		if idx <= 0 || idx == len(raw)-1 {
			return nil, fmt.Errorf("config: malformed WORKER_TARGETS entry %q, expected \"name=url\"", raw)
		}
		targets = append(targets, WorkerTarget{Name: raw[:idx], URL: raw[idx+1:]})
	}
	return targets, nil
}

func (c *CoordinatorConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.DeadlineSec < 1 {
		return fmt.Errorf("deadline_sec must be at least 1, got %d", c.DeadlineSec)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max cannot be negative, got %d", c.RetryMax)
	}
	if c.MaxRequestBytes < 1 {
		return fmt.Errorf("max_request_bytes must be positive, got %d", c.MaxRequestBytes)
	}
	return nil
}

// WorkerConfig configures cmd/worker, the per-request detector invocation
// service.
type WorkerConfig struct {
	Port                 int    `env:"WORKER_PORT" envDefault:"8081"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	APIKey               string `env:"API_KEY"`
	IdempotencyCacheSize int    `env:"IDEMPOTENCY_CACHE_SIZE" envDefault:"1024"`
	MaxRequestBytes      int64  `env:"MAX_REQUEST_BYTES" envDefault:"10485760"`
	PrometheusPort       int    `env:"PROMETHEUS_PORT" envDefault:"9091"`
}

func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ""}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

func (c *WorkerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.IdempotencyCacheSize < 1 {
		return fmt.Errorf("idempotency_cache_size must be positive, got %d", c.IdempotencyCacheSize)
	}
	if c.MaxRequestBytes < 1 {
		return fmt.Errorf("max_request_bytes must be positive, got %d", c.MaxRequestBytes)
	}
	return nil
}

// AggregatorConfig configures cmd/aggregator, the merge + CSV-output stage.
type AggregatorConfig struct {
	Port      int    `env:"AGGREGATOR_PORT" envDefault:"8082"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	APIKey    string `env:"API_KEY"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./output"`
	LogsDir   string `env:"LOGS_DIR" envDefault:"./logs"`

	PseudonymizeAccounts bool   `env:"PSEUDONYMIZE_ACCOUNTS" envDefault:"false"`
	PseudonymizationSalt string `env:"PSEUDONYMIZATION_SALT"`

	RedisURL       string        `env:"REDIS_URL"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	SnapshotTTLSec int           `env:"SNAPSHOT_TTL_SEC" envDefault:"3600"`
	SnapshotTTL    time.Duration `env:"-"`

	PrometheusPort int `env:"PROMETHEUS_PORT" envDefault:"9092"`
}

func LoadAggregatorConfig() (*AggregatorConfig, error) {
	cfg := &AggregatorConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ""}); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	cfg.SnapshotTTL = time.Duration(cfg.SnapshotTTLSec) * time.Second
	return cfg, nil
}

func (c *AggregatorConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.PseudonymizeAccounts && strings.TrimSpace(c.PseudonymizationSalt) == "" {
		return fmt.Errorf("pseudonymization_salt is required when pseudonymize_accounts is enabled")
	}
	if c.SnapshotTTLSec < 1 {
		return fmt.Errorf("snapshot_ttl_sec must be at least 1, got %d", c.SnapshotTTLSec)
	}
	return nil
}

// RedisEnabled reports whether a result-snapshot publisher should be wired
// up at all; the feature is entirely optional and off by default.
func (c *AggregatorConfig) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}
