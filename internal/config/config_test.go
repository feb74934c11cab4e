package config

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.level); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func validCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		Port:            8080,
		LogLevel:        "info",
		DeadlineSec:     30,
		RetryMax:        3,
		MaxRequestBytes: 1024,
	}
}

func TestCoordinatorConfigValidate(t *testing.T) {
	t.Parallel()

	if err := validCoordinatorConfig().Validate(); err != nil {
		t.Fatalf("Validate() on a valid config error = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*CoordinatorConfig)
	}{
		{"invalid port", func(c *CoordinatorConfig) { c.Port = 0 }},
		{"invalid log level", func(c *CoordinatorConfig) { c.LogLevel = "verbose" }},
		{"zero deadline", func(c *CoordinatorConfig) { c.DeadlineSec = 0 }},
		{"negative retry max", func(c *CoordinatorConfig) { c.RetryMax = -1 }},
		{"zero max request bytes", func(c *CoordinatorConfig) { c.MaxRequestBytes = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validCoordinatorConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected Validate() to reject the modified config")
			}
		})
	}
}

func TestParseWorkerTargets(t *testing.T) {
	t.Parallel()

	cfg := &CoordinatorConfig{WorkerTargets: []string{
		"layering=http://worker-layering:8081",
		"wash_trading=http://worker-wash:8081",
	}}

	targets, err := cfg.ParseWorkerTargets()
	if err != nil {
		t.Fatalf("ParseWorkerTargets() error = %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Name != "layering" || targets[0].URL != "http://worker-layering:8081" {
		t.Errorf("unexpected first target: %+v", targets[0])
	}
}

func TestParseWorkerTargetsRejectsMalformedEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry string
	}{
		{"no equals sign", "http://worker:8081"},
		{"empty name", "=http://worker:8081"},
		{"empty url", "layering="},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &CoordinatorConfig{WorkerTargets: []string{tt.entry}}
			if _, err := cfg.ParseWorkerTargets(); err == nil {
				t.Errorf("expected an error parsing malformed entry %q", tt.entry)
			}
		})
	}
}

func TestAggregatorConfigValidateRequiresSaltWhenPseudonymizing(t *testing.T) {
	t.Parallel()

	cfg := &AggregatorConfig{
		Port:                 8082,
		LogLevel:             "info",
		PseudonymizeAccounts: true,
		PseudonymizationSalt: "",
		SnapshotTTLSec:       3600,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate() to reject pseudonymization enabled without a salt")
	}

	cfg.PseudonymizationSalt = "pepper"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with a salt present error = %v", err)
	}
}

func TestAggregatorConfigRedisEnabled(t *testing.T) {
	t.Parallel()

	cfg := &AggregatorConfig{}
	if cfg.RedisEnabled() {
		t.Error("expected RedisEnabled() = false with no RedisURL configured")
	}
	cfg.RedisURL = "redis://localhost:6379"
	if !cfg.RedisEnabled() {
		t.Error("expected RedisEnabled() = true once RedisURL is set")
	}
}

func TestWorkerConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := &WorkerConfig{
		Port:                 8081,
		LogLevel:             "info",
		IdempotencyCacheSize: 1024,
		MaxRequestBytes:      1024,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on a valid config error = %v", err)
	}

	cfg.IdempotencyCacheSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate() to reject a non-positive idempotency cache size")
	}
}
