package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.HTTPAddress)
	}
	if cfg.AudioCacheTTL != 10*time.Minute {
		t.Fatalf("expected default cache TTL 10m, got %s", cfg.AudioCacheTTL)
	}
	if cfg.AudioCacheSweep != time.Minute {
		t.Fatalf("expected default sweep interval 1m, got %s", cfg.AudioCacheSweep)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("PUBLIC_BASE_URL", "https://calls.example.com")
	t.Setenv("AUDIO_CACHE_TTL", "30s")

	cfg := Load()
	if cfg.HTTPAddress != ":9999" {
		t.Fatalf("HTTP_ADDRESS override ignored: %q", cfg.HTTPAddress)
	}
	if cfg.PublicBaseURL != "https://calls.example.com" {
		t.Fatalf("PUBLIC_BASE_URL override ignored: %q", cfg.PublicBaseURL)
	}
	if cfg.AudioCacheTTL != 30*time.Second {
		t.Fatalf("AUDIO_CACHE_TTL override ignored: %s", cfg.AudioCacheTTL)
	}
}

func TestLoad_BadDurationFallsBack(t *testing.T) {
	t.Setenv("AUDIO_CACHE_TTL", "not-a-duration")
	cfg := Load()
	if cfg.AudioCacheTTL != 10*time.Minute {
		t.Fatalf("expected fallback TTL, got %s", cfg.AudioCacheTTL)
	}
}
