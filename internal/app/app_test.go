package app

import (
	"path/filepath"
	"testing"
	"time"

	"skylink/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SKYLINK_CATALOG_URL", "https://catalog.example")
	t.Setenv("SKYLINK_CONTROL_PLANE_URL", "https://cp.example")
	t.Setenv("SKYLINK_REGISTRY_URL", "https://registry.example")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.IPEchoURL != "https://api.ipify.org?format=json" {
		t.Fatalf("unexpected ip echo default: %s", cfg.IPEchoURL)
	}
	if cfg.TunnelBackend != "noop" {
		t.Fatalf("unexpected tunnel backend default: %s", cfg.TunnelBackend)
	}
	if cfg.Interval != time.Second {
		t.Fatalf("unexpected interval default: %s", cfg.Interval)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("unexpected http timeout default: %s", cfg.HTTPTimeout)
	}
}

func TestConfigFromEnvRequiresURLs(t *testing.T) {
	t.Setenv("SKYLINK_CATALOG_URL", "")
	t.Setenv("SKYLINK_CONTROL_PLANE_URL", "https://cp.example")
	t.Setenv("SKYLINK_REGISTRY_URL", "https://registry.example")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing catalog url")
	}
}

func TestConfigFromEnvRejectsBadInterval(t *testing.T) {
	t.Setenv("SKYLINK_CATALOG_URL", "https://catalog.example")
	t.Setenv("SKYLINK_CONTROL_PLANE_URL", "https://cp.example")
	t.Setenv("SKYLINK_REGISTRY_URL", "https://registry.example")
	t.Setenv("SKYLINK_RECONCILE_INTERVAL_MS", "zero")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for bad interval")
	}
}
