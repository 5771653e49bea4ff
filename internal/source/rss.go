// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/resilience"
)

// FeedCollector collects release events from one RSS/Atom feed. Feed entries
// carry the work title and the episode/volume marker in the entry title;
// entries without a recognizable marker are skipped, not errors.
type FeedCollector struct {
	name     string
	url      string
	platform string
	fetcher  *Fetcher
	pipeline *resilience.Pipeline
	store    StateStore
}

// NewFeedCollector builds a collector named "rss:<feed name>".
func NewFeedCollector(cfg config.FeedConfig, res config.ResilienceConfig, fetcher *Fetcher, store StateStore) *FeedCollector {
	name := "rss:" + cfg.Name
	platform := cfg.Platform
	if platform == "" {
		platform = cfg.Name
	}
	return &FeedCollector{
		name:     name,
		url:      cfg.URL,
		platform: platform,
		fetcher:  fetcher,
		pipeline: resilience.NewPipeline(name, cfg.Resilience.Merged(res)),
		store:    store,
	}
}

func (c *FeedCollector) Name() string { return c.name }

// Collect fetches the feed once, honoring the stored conditional-fetch
// cursor, and parses every entry it can.
func (c *FeedCollector) Collect(ctx context.Context) ([]models.RawItem, *models.FetchSummary) {
	start := time.Now()
	summary := &models.FetchSummary{Source: c.name}
	state := loadState(ctx, c.store, c.name)

	var items []models.RawItem
	err := c.pipeline.Do(ctx, func(ctx context.Context) error {
		res, err := c.fetcher.Get(ctx, c.url, nil, state.ETag, state.LastModified, state.ContentHash)
		if err != nil {
			return err
		}
		if res.NotModified {
			summary.NotModified = true
			return nil
		}

		entries, err := parseFeed(res.Body)
		if err != nil {
			return resilience.Parse(err, string(res.Body))
		}

		// Tokens are stored only after a successful parse so a bad payload
		// is refetched next run instead of being "not modified".
		state.ETag = res.ETag
		state.LastModified = res.LastModified
		state.ContentHash = res.Hash

		items = items[:0] // a retried attempt must not double-count
		for _, entry := range entries {
			item, ok := c.entryToItem(entry)
			if !ok {
				logging.Debug().
					Str("source", c.name).
					Str("title", entry.Title).
					Msg("skipping feed entry without release marker")
				continue
			}
			items = append(items, item)
		}
		return nil
	})

	saveState(ctx, c.store, state, err == nil)
	finalize(summary, c.pipeline, start, len(items), err)
	return items, summary
}

// entryToItem splits a feed entry title into work title and release marker.
func (c *FeedCollector) entryToItem(entry feedEntry) (models.RawItem, bool) {
	title, kind, number, ok := splitReleaseTitle(entry.Title)
	if !ok {
		return models.RawItem{}, false
	}
	workKind := models.WorkAnime
	if kind == models.ReleaseVolume {
		workKind = models.WorkManga
	}
	var date *time.Time
	if entry.Published != nil {
		d := models.DateOnly(*entry.Published)
		date = &d
	}
	return models.RawItem{
		Source:      c.name,
		Title:       title,
		WorkKind:    workKind,
		Kind:        kind,
		Number:      number,
		Platform:    c.platform,
		ReleaseDate: date,
		URL:         entry.Link,
	}, true
}

var (
	episodeMarker = regexp.MustCompile(`(?i)[\s\-–—:]*(?:episode|ep\.?)\s*#?(\d+(?:\.\d+)?)\s*$`)
	volumeMarker  = regexp.MustCompile(`(?i)[\s\-–—:]*(?:volume|vol\.?)\s*#?(\d+(?:\.\d+)?)\s*$`)
	seasonMarker  = regexp.MustCompile(`(?i)[\s\-–—:]*\b(s\d+e\d+)\s*$`)
)

// splitReleaseTitle extracts the release marker from a feed entry title.
// Recognized suffixes: "Episode 12", "Ep. 12", "Volume 3", "Vol. 3", and
// season-episode compounds like "S2E01". Returns the remaining work title,
// the release kind, and the raw number string.
func splitReleaseTitle(title string) (string, models.ReleaseKind, string, bool) {
	title = strings.TrimSpace(title)

	if m := episodeMarker.FindStringSubmatchIndex(title); m != nil {
		work := strings.TrimSpace(title[:m[0]])
		if work != "" {
			return work, models.ReleaseEpisode, title[m[2]:m[3]], true
		}
	}
	if m := volumeMarker.FindStringSubmatchIndex(title); m != nil {
		work := strings.TrimSpace(title[:m[0]])
		if work != "" {
			return work, models.ReleaseVolume, title[m[2]:m[3]], true
		}
	}
	if m := seasonMarker.FindStringSubmatchIndex(title); m != nil {
		work := strings.TrimSpace(title[:m[0]])
		if work != "" {
			return work, models.ReleaseEpisode, title[m[2]:m[3]], true
		}
	}
	return "", "", "", false
}
