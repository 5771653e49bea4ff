// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package config defines the typed application configuration and its layered
// loading (defaults, YAML file, environment variables). Configuration is
// validated eagerly at startup; nothing downstream re-checks presence of
// required fields.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Sources    SourcesConfig    `koanf:"sources"`
	Resilience ResilienceConfig `koanf:"resilience"`
	Normalizer NormalizerConfig `koanf:"normalizer"`
	Collect    CollectConfig    `koanf:"collect"`
	Database   DatabaseConfig   `koanf:"database"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// SourcesConfig holds the per-source settings for all upstreams.
type SourcesConfig struct {
	AniList  AniListConfig  `koanf:"anilist"`
	Calendar CalendarConfig `koanf:"calendar"`
	Feeds    []FeedConfig   `koanf:"feeds"`
}

// AniListConfig configures the GraphQL airing-schedule source.
type AniListConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	// Token is optional bearer auth material, passed through to the HTTP
	// layer unmodified.
	Token    string `koanf:"token"`
	PageSize int    `koanf:"page_size"`
	// Resilience overrides the global resilience settings for this source.
	// Zero-valued fields inherit from the global block.
	Resilience ResilienceConfig `koanf:"resilience"`
}

// CalendarConfig configures the calendar-style JSON API source.
type CalendarConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	// LookaheadDays bounds the date window requested per run.
	LookaheadDays int              `koanf:"lookahead_days"`
	Resilience    ResilienceConfig `koanf:"resilience"`
}

// FeedConfig configures one RSS/Atom feed source.
type FeedConfig struct {
	Name string `koanf:"name"`
	URL  string `koanf:"url"`
	// Platform labels releases from this feed; defaults to Name.
	Platform   string           `koanf:"platform"`
	Resilience ResilienceConfig `koanf:"resilience"`
}

// ResilienceConfig holds the per-source protection parameters: rate limiting,
// circuit breaking, retry, and the per-source overall deadline.
type ResilienceConfig struct {
	// RateLimit is the request budget per RateWindow.
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
	// BurstFraction is the fraction of the window budget admitted
	// immediately before smooth throttling takes over. Range (0, 1].
	BurstFraction float64 `koanf:"burst_fraction"`
	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit.
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
	// RetryAttempts is the total number of tries, including the first.
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	// SourceTimeout bounds the sum of all retries and waits for one
	// source within a run.
	SourceTimeout time.Duration `koanf:"source_timeout"`
}

// Merged returns r with zero-valued fields filled from base.
func (r ResilienceConfig) Merged(base ResilienceConfig) ResilienceConfig {
	if r.RateLimit == 0 {
		r.RateLimit = base.RateLimit
	}
	if r.RateWindow == 0 {
		r.RateWindow = base.RateWindow
	}
	if r.BurstFraction == 0 {
		r.BurstFraction = base.BurstFraction
	}
	if r.BreakerThreshold == 0 {
		r.BreakerThreshold = base.BreakerThreshold
	}
	if r.BreakerCooldown == 0 {
		r.BreakerCooldown = base.BreakerCooldown
	}
	if r.RetryAttempts == 0 {
		r.RetryAttempts = base.RetryAttempts
	}
	if r.RetryBaseDelay == 0 {
		r.RetryBaseDelay = base.RetryBaseDelay
	}
	if r.SourceTimeout == 0 {
		r.SourceTimeout = base.SourceTimeout
	}
	return r
}

// NormalizerConfig holds the fuzzy-merge thresholds. Release merging and Work
// resolution use separate thresholds; Work resolution is stricter to avoid
// false merges of distinct titles.
type NormalizerConfig struct {
	ReleaseMergeThreshold float64 `koanf:"release_merge_threshold"`
	WorkMatchThreshold    float64 `koanf:"work_match_threshold"`
}

// CollectConfig controls the periodic ingestion schedule.
type CollectConfig struct {
	Interval     time.Duration `koanf:"interval"`
	RunOnStartup bool          `koanf:"run_on_startup"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads for DuckDB; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
	// MaxOpenConns bounds the database/sql connection pool; 0 means the
	// default (NumCPU, minimum 4).
	MaxOpenConns int `koanf:"max_open_conns"`
}

// ServerConfig configures the collaborator API server.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
