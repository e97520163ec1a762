package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://giggen.app , ,http://localhost:5173")
	t.Setenv("COMPLETION_SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("STORAGE", "")
	t.Setenv("SUPABASE_JWT_AUDIENCE", "")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.HTTPAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://giggen.app" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.CompletionSweepInterval != 5*time.Minute {
		t.Fatalf("expected fallback sweep interval, got %s", cfg.CompletionSweepInterval)
	}
	if cfg.Storage != "postgres" {
		t.Fatalf("unexpected storage %q", cfg.Storage)
	}
	if cfg.Supabase.Audience != "authenticated" {
		t.Fatalf("unexpected audience %q", cfg.Supabase.Audience)
	}
}
