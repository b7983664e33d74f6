package infra

import (
	"errors"
	"testing"
	"time"

	"plantscan/internal/domain"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("COUNTER_BACKEND", "")
	t.Setenv("DEFAULT_TIMEZONE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.CounterBackend != CounterBackendPostgres {
		t.Fatalf("CounterBackend = %q", cfg.CounterBackend)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("Location = %v", cfg.Location)
	}
	if cfg.IdentifyTimeout != 30*time.Second || cfg.RolloverCheckInterval != time.Minute {
		t.Fatalf("timeouts = %s / %s", cfg.IdentifyTimeout, cfg.RolloverCheckInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.ExpirySweepSpec != "@every 1h" {
		t.Fatalf("ExpirySweepSpec = %q", cfg.ExpirySweepSpec)
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"unknown backend", map[string]string{"COUNTER_BACKEND": "etcd"}},
		{"redis without url", map[string]string{"COUNTER_BACKEND": "redis", "REDIS_URL": ""}},
		{"bad timezone", map[string]string{"DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"zero identify timeout", map[string]string{"IDENTIFY_TIMEOUT_SECONDS": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadConfigRedisBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("COUNTER_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CounterBackend != CounterBackendRedis {
		t.Fatalf("CounterBackend = %q", cfg.CounterBackend)
	}
}
