// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
// Validation happens once at startup; call sites may assume a validated
// Config afterwards.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.Resilience.validate("resilience"); err != nil {
		return err
	}
	if err := c.validateNormalizer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSources() error {
	if c.Sources.AniList.Enabled {
		if err := validateHTTPURL(c.Sources.AniList.BaseURL, "sources.anilist.base_url"); err != nil {
			return err
		}
		if c.Sources.AniList.PageSize <= 0 || c.Sources.AniList.PageSize > 500 {
			return fmt.Errorf("sources.anilist.page_size must be in 1..500, got %d", c.Sources.AniList.PageSize)
		}
	}
	if c.Sources.Calendar.Enabled {
		if err := validateHTTPURL(c.Sources.Calendar.BaseURL, "sources.calendar.base_url"); err != nil {
			return err
		}
		if c.Sources.Calendar.LookaheadDays <= 0 {
			return fmt.Errorf("sources.calendar.lookahead_days must be positive, got %d", c.Sources.Calendar.LookaheadDays)
		}
	}

	seen := make(map[string]bool)
	for i, feed := range c.Sources.Feeds {
		if strings.TrimSpace(feed.Name) == "" {
			return fmt.Errorf("sources.feeds[%d].name is required", i)
		}
		if seen[feed.Name] {
			return fmt.Errorf("sources.feeds: duplicate feed name %q", feed.Name)
		}
		seen[feed.Name] = true
		if err := validateHTTPURL(feed.URL, fmt.Sprintf("sources.feeds[%d].url", i)); err != nil {
			return err
		}
	}
	return nil
}

func (r ResilienceConfig) validate(section string) error {
	if r.RateLimit <= 0 {
		return fmt.Errorf("%s.rate_limit must be positive, got %d", section, r.RateLimit)
	}
	if r.RateWindow <= 0 {
		return fmt.Errorf("%s.rate_window must be positive, got %s", section, r.RateWindow)
	}
	if r.BurstFraction <= 0 || r.BurstFraction > 1 {
		return fmt.Errorf("%s.burst_fraction must be in (0, 1], got %g", section, r.BurstFraction)
	}
	if r.BreakerThreshold <= 0 {
		return fmt.Errorf("%s.breaker_threshold must be positive, got %d", section, r.BreakerThreshold)
	}
	if r.BreakerCooldown <= 0 {
		return fmt.Errorf("%s.breaker_cooldown must be positive, got %s", section, r.BreakerCooldown)
	}
	if r.RetryAttempts <= 0 {
		return fmt.Errorf("%s.retry_attempts must be positive, got %d", section, r.RetryAttempts)
	}
	if r.RetryBaseDelay <= 0 {
		return fmt.Errorf("%s.retry_base_delay must be positive, got %s", section, r.RetryBaseDelay)
	}
	if r.SourceTimeout <= 0 {
		return fmt.Errorf("%s.source_timeout must be positive, got %s", section, r.SourceTimeout)
	}
	return nil
}

func (c *Config) validateNormalizer() error {
	if c.Normalizer.ReleaseMergeThreshold < 0.5 || c.Normalizer.ReleaseMergeThreshold > 1.0 {
		return fmt.Errorf("normalizer.release_merge_threshold must be in [0.5, 1.0], got %g", c.Normalizer.ReleaseMergeThreshold)
	}
	if c.Normalizer.WorkMatchThreshold < 0.5 || c.Normalizer.WorkMatchThreshold > 1.0 {
		return fmt.Errorf("normalizer.work_match_threshold must be in [0.5, 1.0], got %g", c.Normalizer.WorkMatchThreshold)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that value is an absolute http(s) URL.
func validateHTTPURL(value, field string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}

// EnabledSourceCount returns how many sources are enabled; at least one must
// be enabled for the collector to do anything useful, but zero is allowed
// (API-only operation).
func (c *Config) EnabledSourceCount() int {
	n := 0
	if c.Sources.AniList.Enabled {
		n++
	}
	if c.Sources.Calendar.Enabled {
		n++
	}
	n += len(c.Sources.Feeds)
	return n
}
