// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package source implements the per-source collectors: the AniList GraphQL
// airing schedule, calendar-style JSON APIs, and RSS/Atom release feeds. Each
// collector wraps its HTTP work in a resilience.Pipeline and reports a
// FetchSummary alongside whatever items it managed to parse.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/resilience"
)

// Collector is one external source. Collect returns the raw items parsed this
// run and a summary. Items parsed before a terminal error are returned anyway;
// the summary's Err field carries the terminal error when one occurred.
// Collect never panics the run for a source-local failure.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]models.RawItem, *models.FetchSummary)
}

// StateStore loads and saves the per-source conditional-fetch cursor. The
// database package implements it; tests use memStateStore.
type StateStore interface {
	GetFetchState(ctx context.Context, source string) (*models.SourceFetchState, error)
	PutFetchState(ctx context.Context, state *models.SourceFetchState) error
}

// loadState fetches the stored cursor, falling back to an empty one when the
// store has nothing or fails. A lost cursor only costs one unconditional
// fetch, so state load errors are not terminal.
func loadState(ctx context.Context, store StateStore, source string) *models.SourceFetchState {
	if store == nil {
		return &models.SourceFetchState{Source: source}
	}
	state, err := store.GetFetchState(ctx, source)
	if err != nil || state == nil {
		return &models.SourceFetchState{Source: source}
	}
	return state
}

// saveState persists the cursor after a fetch, updating the bookkeeping
// fields. Save errors are swallowed for the same reason load errors are.
func saveState(ctx context.Context, store StateStore, state *models.SourceFetchState, success bool) {
	if store == nil {
		return
	}
	now := time.Now().UTC()
	state.UpdatedAt = now
	if success {
		state.LastSuccess = &now
		state.ConsecutiveFailures = 0
	} else {
		state.ConsecutiveFailures++
	}
	_ = store.PutFetchState(ctx, state)
}

// finalize fills in the summary's terminal fields and records the fetch
// outcome metric. err is the terminal error from the pipeline, nil on
// success.
func finalize(summary *models.FetchSummary, pipeline *resilience.Pipeline, start time.Time, itemCount int, err error) {
	summary.Duration = time.Since(start)
	summary.BreakerState = pipeline.BreakerState()
	summary.ItemsSeen = itemCount

	outcome := "success"
	switch {
	case err == nil && summary.NotModified:
		outcome = "not_modified"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
		summary.RecordError(outcome, err)
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
		summary.RecordError(outcome, err)
	case err != nil:
		outcome = string(resilience.Classify(err))
		summary.RecordError(outcome, err)
	}

	metrics.SourceFetches.WithLabelValues(summary.Source, outcome).Inc()
	if itemCount > 0 {
		metrics.ItemsCollected.WithLabelValues(summary.Source).Add(float64(itemCount))
	}

	event := logging.Debug()
	if err != nil {
		event = logging.Warn().Err(err)
	}
	event.
		Str("source", summary.Source).
		Str("outcome", outcome).
		Int("items", itemCount).
		Str("breaker", summary.BreakerState).
		Dur("duration", summary.Duration).
		Msg("source collection finished")
}
