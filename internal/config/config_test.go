package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_ADDR", "DATABASE_URL", "REDIS_ADDR", "STATE_DIR", "WRITE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.StateDir != "./state" {
		t.Errorf("StateDir = %q, want ./state", cfg.StateDir)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.RemoteConfigured() {
		t.Error("RemoteConfigured true with no backend configured")
	}
}

func TestRemoteConfiguredNeedsBothBackends(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/stufff")
	t.Setenv("REDIS_ADDR", "")
	if Load().RemoteConfigured() {
		t.Error("RemoteConfigured true with Postgres only")
	}

	t.Setenv("REDIS_ADDR", "localhost:6379")
	if !Load().RemoteConfigured() {
		t.Error("RemoteConfigured false with both backends set")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "not a number")
	t.Setenv("TEST_DUR", "30s")

	if got := GetEnv("TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv unset = %q", got)
	}
	if got := GetEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt malformed = %d, want fallback", got)
	}
	if got := GetEnvDuration("TEST_DUR", time.Second); got != 30*time.Second {
		t.Errorf("GetEnvDuration = %v", got)
	}
}
