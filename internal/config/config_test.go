// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateEnabledSourceRequiresURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sources.Calendar.Enabled = true
	cfg.Sources.Calendar.BaseURL = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for enabled calendar source without base_url")
	}
	if !strings.Contains(err.Error(), "sources.calendar.base_url") {
		t.Errorf("error should name the missing field, got %q", err)
	}
}

func TestValidateRejectsNonHTTPURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sources.Feeds = []FeedConfig{{Name: "test", URL: "ftp://example.com/feed"}}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for ftp feed URL")
	}
}

func TestValidateRejectsDuplicateFeedNames(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sources.Feeds = []FeedConfig{
		{Name: "dup", URL: "https://a.example.com/feed"},
		{Name: "dup", URL: "https://b.example.com/feed"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for duplicate feed names")
	}
	if !strings.Contains(err.Error(), "duplicate feed name") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateThresholdBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Normalizer.WorkMatchThreshold = 0.3

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for threshold below 0.5")
	}
}

func TestValidateBurstFraction(t *testing.T) {
	cfg := defaultConfig()
	cfg.Resilience.BurstFraction = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for burst fraction above 1")
	}
}

func TestResilienceMergedInheritsZeroFields(t *testing.T) {
	base := defaultConfig().Resilience
	override := ResilienceConfig{RateLimit: 5, BreakerThreshold: 2}

	merged := override.Merged(base)

	if merged.RateLimit != 5 {
		t.Errorf("override RateLimit lost: got %d", merged.RateLimit)
	}
	if merged.BreakerThreshold != 2 {
		t.Errorf("override BreakerThreshold lost: got %d", merged.BreakerThreshold)
	}
	if merged.RateWindow != base.RateWindow {
		t.Errorf("RateWindow should inherit %s, got %s", base.RateWindow, merged.RateWindow)
	}
	if merged.RetryAttempts != base.RetryAttempts {
		t.Errorf("RetryAttempts should inherit %d, got %d", base.RetryAttempts, merged.RetryAttempts)
	}
	if merged.SourceTimeout != base.SourceTimeout {
		t.Errorf("SourceTimeout should inherit %s, got %s", base.SourceTimeout, merged.SourceTimeout)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"ANILIST_BASE_URL", "sources.anilist.base_url"},
		{"CALENDAR_API_KEY", "sources.calendar.api_key"},
		{"BREAKER_THRESHOLD", "resilience.breaker_threshold"},
		{"DUCKDB_PATH", "database.path"},
		{"LOG_LEVEL", "logging.level"},
		{"RANDOM_UNRELATED_VAR", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestEnabledSourceCount(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.EnabledSourceCount(); got != 0 {
		t.Fatalf("default config should have 0 enabled sources, got %d", got)
	}

	cfg.Sources.AniList.Enabled = true
	cfg.Sources.Feeds = []FeedConfig{
		{Name: "a", URL: "https://a.example.com/rss"},
		{Name: "b", URL: "https://b.example.com/rss"},
	}
	if got := cfg.EnabledSourceCount(); got != 3 {
		t.Fatalf("expected 3 enabled sources, got %d", got)
	}
}

func TestDefaultResilienceValues(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Resilience.BreakerThreshold != 5 {
		t.Errorf("default breaker threshold should be 5, got %d", cfg.Resilience.BreakerThreshold)
	}
	if cfg.Resilience.BreakerCooldown != 60*time.Second {
		t.Errorf("default breaker cooldown should be 60s, got %s", cfg.Resilience.BreakerCooldown)
	}
	if cfg.Resilience.RetryAttempts != 3 {
		t.Errorf("default retry attempts should be 3, got %d", cfg.Resilience.RetryAttempts)
	}
}
