// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/resilience"
)

// SourceCalendar is the collector name for the calendar JSON API.
const SourceCalendar = "calendar"

// CalendarCollector collects upcoming releases from a calendar-style JSON
// API: one GET for a date window, conditional headers honored.
type CalendarCollector struct {
	cfg      config.CalendarConfig
	fetcher  *Fetcher
	pipeline *resilience.Pipeline
	store    StateStore
}

func NewCalendarCollector(cfg config.CalendarConfig, res config.ResilienceConfig, fetcher *Fetcher, store StateStore) *CalendarCollector {
	return &CalendarCollector{
		cfg:      cfg,
		fetcher:  fetcher,
		pipeline: resilience.NewPipeline(SourceCalendar, cfg.Resilience.Merged(res)),
		store:    store,
	}
}

func (c *CalendarCollector) Name() string { return SourceCalendar }

// calendarEntry is one record in the calendar API response.
type calendarEntry struct {
	Title    string `json:"title"`
	Type     string `json:"type"` // "anime" | "manga"
	Kind     string `json:"kind"` // "episode" | "volume"
	Number   string `json:"number"`
	Platform string `json:"platform"`
	Date     string `json:"date"` // YYYY-MM-DD, may be empty
	URL      string `json:"url"`
}

func (c *CalendarCollector) Collect(ctx context.Context) ([]models.RawItem, *models.FetchSummary) {
	start := time.Now()
	summary := &models.FetchSummary{Source: SourceCalendar}
	state := loadState(ctx, c.store, SourceCalendar)

	windowStart := models.DateOnly(start)
	windowEnd := windowStart.AddDate(0, 0, c.cfg.LookaheadDays)
	requestURL := c.windowURL(windowStart, windowEnd)

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("X-Api-Key", c.cfg.APIKey)
	}

	var items []models.RawItem
	err := c.pipeline.Do(ctx, func(ctx context.Context) error {
		res, err := c.fetcher.Get(ctx, requestURL, header, state.ETag, state.LastModified, state.ContentHash)
		if err != nil {
			return err
		}
		if res.NotModified {
			summary.NotModified = true
			return nil
		}

		var entries []calendarEntry
		if err := json.Unmarshal(res.Body, &entries); err != nil {
			return resilience.Parse(fmt.Errorf("decode calendar response: %w", err), string(res.Body))
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
					Str("source", SourceCalendar).
					Str("title", entry.Title).
					Msg("skipping calendar entry with missing fields")
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

func (c *CalendarCollector) windowURL(start, end time.Time) string {
	q := url.Values{}
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	sep := "?"
	if u, err := url.Parse(c.cfg.BaseURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return c.cfg.BaseURL + sep + q.Encode()
}

func (c *CalendarCollector) entryToItem(entry calendarEntry) (models.RawItem, bool) {
	if entry.Title == "" || entry.Number == "" {
		return models.RawItem{}, false
	}

	workKind := models.WorkKind(entry.Type)
	releaseKind := models.ReleaseKind(entry.Kind)
	switch releaseKind {
	case models.ReleaseEpisode, models.ReleaseVolume:
	default:
		// Infer from the work type when the kind field is absent.
		switch workKind {
		case models.WorkManga:
			releaseKind = models.ReleaseVolume
		default:
			releaseKind = models.ReleaseEpisode
		}
	}
	switch workKind {
	case models.WorkAnime, models.WorkManga:
	default:
		if releaseKind == models.ReleaseVolume {
			workKind = models.WorkManga
		} else {
			workKind = models.WorkAnime
		}
	}

	var date *time.Time
	if entry.Date != "" {
		if parsed, err := time.Parse("2006-01-02", entry.Date); err == nil {
			d := models.DateOnly(parsed)
			date = &d
		}
	}

	return models.RawItem{
		Source:      SourceCalendar,
		Title:       entry.Title,
		WorkKind:    workKind,
		Kind:        releaseKind,
		Number:      entry.Number,
		Platform:    entry.Platform,
		ReleaseDate: date,
		URL:         entry.URL,
	}, true
}
