package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TOURNEY_CONFIG", "STORE_DRIVER", "REDIS_URL", "DATABASE_URL", "REDIS_TTL_HOURS",
		"GAMEHOST_MODE", "GAMEHOST_URL", "GAMEHOST_WS_URL", "GAMEHOST_TIMEOUT_MS",
		"MAX_CHAT_LINES", "PRELOAD_LIVE", "PRELOAD_CONCURRENCY", "TICK_INTERVAL_MS", "PROD",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StoreMemory || cfg.GameHostMode != HostLocal {
		t.Fatalf("unexpected drivers: %+v", cfg)
	}
	if cfg.MaxChatLines != 100 || !cfg.PreloadLive || cfg.PreloadConcurrency != 4 || cfg.TickInterval != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRequiresRedisURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "redis")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without REDIS_URL")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadYAMLOverlayThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tourney.yaml")
	body := []byte("store_driver: redis\nredis_url: redis://file:6379/0\nmax_chat_lines: 50\nredis_ttl_hours: 2\ngamehost_timeout_ms: 500\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOURNEY_CONFIG", path)
	t.Setenv("REDIS_URL", "redis://env:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != StoreRedis {
		t.Fatalf("driver = %q", cfg.StoreDriver)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env should win over file, got %q", cfg.RedisURL)
	}
	if cfg.MaxChatLines != 50 {
		t.Fatalf("max chat lines = %d", cfg.MaxChatLines)
	}
	if cfg.RedisTTL != 2*time.Hour || cfg.GameHostTimeout != 500*time.Millisecond {
		t.Fatalf("durations: ttl=%v timeout=%v", cfg.RedisTTL, cfg.GameHostTimeout)
	}
}
