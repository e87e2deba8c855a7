package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PASSGAGE_GW_CRYPTO_PASSPHRASE", "test-passphrase")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("expected memory backend by default, got %s", cfg.Storage.Backend)
	}
	if cfg.Session.Timeout != time.Hour {
		t.Fatalf("expected 1h session timeout, got %v", cfg.Session.Timeout)
	}
	if cfg.Security.RateCap != 100 {
		t.Fatalf("expected rate cap 100, got %d", cfg.Security.RateCap)
	}
	if cfg.Security.FreeRetries != 5 {
		t.Fatalf("expected 5 free retries, got %d", cfg.Security.FreeRetries)
	}
	if cfg.Security.MinWait != 10*time.Second || cfg.Security.MaxWait != 5*time.Minute {
		t.Fatalf("unexpected lockout bounds: %v / %v", cfg.Security.MinWait, cfg.Security.MaxWait)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PASSGAGE_GW_CRYPTO_PASSPHRASE", "test-passphrase")
	t.Setenv("PASSGAGE_GW_SECURITY_RATE_CAP", "250")
	t.Setenv("PASSGAGE_GW_SESSION_TIMEOUT", "30m")
	t.Setenv("PASSGAGE_GW_APP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Security.RateCap != 250 {
		t.Fatalf("expected rate cap 250, got %d", cfg.Security.RateCap)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Fatalf("expected 30m timeout, got %v", cfg.Session.Timeout)
	}
	if cfg.App.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.App.Port)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("PASSGAGE_GW_CRYPTO_PASSPHRASE", "test-passphrase")
	t.Setenv("PASSGAGE_GW_STORAGE_BACKEND", "mongodb")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unsupported backend")
	}
}

func TestLoadRequiresKeyMaterial(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when no crypto key material is configured")
	}
}
