// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package config

import "time"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			AniList: AniListConfig{
				Enabled:  false,
				BaseURL:  "https://graphql.anilist.co",
				Token:    "",
				PageSize: 50,
			},
			Calendar: CalendarConfig{
				Enabled:       false,
				BaseURL:       "",
				APIKey:        "",
				LookaheadDays: 14,
			},
			Feeds: nil,
		},
		Resilience: ResilienceConfig{
			RateLimit:        30,
			RateWindow:       time.Minute,
			BurstFraction:    0.5,
			BreakerThreshold: 5,
			BreakerCooldown:  60 * time.Second,
			RetryAttempts:    3,
			RetryBaseDelay:   500 * time.Millisecond,
			SourceTimeout:    2 * time.Minute,
		},
		Normalizer: NormalizerConfig{
			ReleaseMergeThreshold: 0.85,
			WorkMatchThreshold:    0.90,
		},
		Collect: CollectConfig{
			Interval:     30 * time.Minute,
			RunOnStartup: true,
		},
		Database: DatabaseConfig{
			Path:         "/data/shinchaku.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = runtime.NumCPU()
			MaxOpenConns: 0,
		},
		Server: ServerConfig{
			Port:            8680,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
