// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where the config file is searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shinchaku/config.yaml",
	"/etc/shinchaku/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration with layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
//
// The result is validated before being returned; an invalid configuration is
// a startup error, never a runtime one.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are skipped so unrelated environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		// AniList source
		"anilist_enabled":   "sources.anilist.enabled",
		"anilist_base_url":  "sources.anilist.base_url",
		"anilist_token":     "sources.anilist.token",
		"anilist_page_size": "sources.anilist.page_size",

		// Calendar source
		"calendar_enabled":        "sources.calendar.enabled",
		"calendar_base_url":       "sources.calendar.base_url",
		"calendar_api_key":        "sources.calendar.api_key",
		"calendar_lookahead_days": "sources.calendar.lookahead_days",

		// Resilience defaults
		"rate_limit":        "resilience.rate_limit",
		"rate_window":       "resilience.rate_window",
		"burst_fraction":    "resilience.burst_fraction",
		"breaker_threshold": "resilience.breaker_threshold",
		"breaker_cooldown":  "resilience.breaker_cooldown",
		"retry_attempts":    "resilience.retry_attempts",
		"retry_base_delay":  "resilience.retry_base_delay",
		"source_timeout":    "resilience.source_timeout",

		// Normalizer
		"release_merge_threshold": "normalizer.release_merge_threshold",
		"work_match_threshold":    "normalizer.work_match_threshold",

		// Collect schedule
		"collect_interval":       "collect.interval",
		"collect_run_on_startup": "collect.run_on_startup",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Server
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
