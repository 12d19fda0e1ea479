package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL_MINUTES", "")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "bogus")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.SessionTTLMinutes != 720 {
		t.Fatalf("expected default session ttl 720, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.StatsCacheTTLSeconds != 30 {
		t.Fatalf("expected stats ttl fallback 30, got %d", cfg.StatsCacheTTLSeconds)
	}
}
