// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/resilience"
)

// SourceAniList is the collector name for the GraphQL airing schedule.
const SourceAniList = "anilist"

// maxAniListPages bounds pagination within one run so a runaway upstream
// cursor cannot pin a collector for the whole deadline.
const maxAniListPages = 20

// airingQuery pulls the airing schedule for a time window, paged.
const airingQuery = `query ($page: Int, $perPage: Int, $from: Int, $to: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    airingSchedules(airingAt_greater: $from, airingAt_lesser: $to, sort: TIME) {
      episode
      airingAt
      media {
        siteUrl
        title { romaji english }
      }
    }
  }
}`

// AniListCollector collects aired-episode events from the AniList GraphQL
// API. GraphQL has no conditional GET; instead the stored LastSuccess
// timestamp narrows the queried airing window so a run only asks for what it
// has not seen.
type AniListCollector struct {
	cfg      config.AniListConfig
	fetcher  *Fetcher
	pipeline *resilience.Pipeline
	store    StateStore
}

func NewAniListCollector(cfg config.AniListConfig, res config.ResilienceConfig, fetcher *Fetcher, store StateStore) *AniListCollector {
	return &AniListCollector{
		cfg:      cfg,
		fetcher:  fetcher,
		pipeline: resilience.NewPipeline(SourceAniList, cfg.Resilience.Merged(res)),
		store:    store,
	}
}

func (c *AniListCollector) Name() string { return SourceAniList }

type anilistResponse struct {
	Data struct {
		Page struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			AiringSchedules []anilistSchedule `json:"airingSchedules"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type anilistSchedule struct {
	Episode  int   `json:"episode"`
	AiringAt int64 `json:"airingAt"`
	Media    struct {
		SiteURL string `json:"siteUrl"`
		Title   struct {
			Romaji  string `json:"romaji"`
			English string `json:"english"`
		} `json:"title"`
	} `json:"media"`
}

// Collect pages through the airing window. Pages already parsed stay in the
// result when a later page fails; the terminal error goes into the summary.
func (c *AniListCollector) Collect(ctx context.Context) ([]models.RawItem, *models.FetchSummary) {
	start := time.Now()
	summary := &models.FetchSummary{Source: SourceAniList}
	state := loadState(ctx, c.store, SourceAniList)

	from := start.Add(-24 * time.Hour)
	if state.LastSuccess != nil && state.LastSuccess.After(from) {
		from = *state.LastSuccess
	}
	to := start

	var items []models.RawItem
	var terminal error
	for page := 1; page <= maxAniListPages; page++ {
		schedules, hasNext, err := c.fetchPage(ctx, page, from, to)
		if err != nil {
			terminal = err
			break
		}
		for _, sched := range schedules {
			items = append(items, c.scheduleToItem(sched))
		}
		if !hasNext {
			break
		}
	}

	saveState(ctx, c.store, state, terminal == nil)
	finalize(summary, c.pipeline, start, len(items), terminal)
	return items, summary
}

// fetchPage requests one page under the full protection stack.
func (c *AniListCollector) fetchPage(ctx context.Context, page int, from, to time.Time) ([]anilistSchedule, bool, error) {
	payload, err := json.Marshal(map[string]any{
		"query": airingQuery,
		"variables": map[string]any{
			"page":    page,
			"perPage": c.cfg.PageSize,
			"from":    from.Unix(),
			"to":      to.Unix(),
		},
	})
	if err != nil {
		return nil, false, resilience.Permanent(fmt.Errorf("marshal query: %w", err))
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	var schedules []anilistSchedule
	var hasNext bool
	err = c.pipeline.Do(ctx, func(ctx context.Context) error {
		body, err := c.fetcher.Post(ctx, c.cfg.BaseURL, header, payload)
		if err != nil {
			return err
		}
		var resp anilistResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return resilience.Parse(fmt.Errorf("decode response: %w", err), string(body))
		}
		if len(resp.Errors) > 0 {
			// GraphQL-level errors arrive with HTTP 200; treat them as a
			// schema/data problem, not source unavailability.
			return resilience.Parse(fmt.Errorf("graphql error: %s", resp.Errors[0].Message), string(body))
		}
		schedules = resp.Data.Page.AiringSchedules
		hasNext = resp.Data.Page.PageInfo.HasNextPage
		return nil
	})
	return schedules, hasNext, err
}

func (c *AniListCollector) scheduleToItem(sched anilistSchedule) models.RawItem {
	title := sched.Media.Title.Romaji
	if title == "" {
		title = sched.Media.Title.English
	}
	var date *time.Time
	if sched.AiringAt > 0 {
		d := models.DateOnly(time.Unix(sched.AiringAt, 0))
		date = &d
	}
	return models.RawItem{
		Source:      SourceAniList,
		Title:       title,
		WorkKind:    models.WorkAnime,
		Kind:        models.ReleaseEpisode,
		Number:      strconv.Itoa(sched.Episode),
		Platform:    SourceAniList,
		ReleaseDate: date,
		URL:         sched.Media.SiteURL,
	}
}
