// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package collect runs the ingestion pipeline end to end: fan out to all
// registered collectors, normalize and deduplicate what they yield, and store
// the surviving releases. One failed source never stops a run; only an
// unavailable store or run-level cancellation does.
package collect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ayatori/shinchaku/internal/database"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/normalize"
	"github.com/ayatori/shinchaku/internal/source"
)

// Store is the storage surface a run needs. *database.DB implements it.
type Store interface {
	ListWorks(ctx context.Context) ([]models.Work, error)
	StoreRelease(ctx context.Context, item *normalize.Item) (database.Outcome, error)
	InsertRun(ctx context.Context, run *models.RunSummary) error
}

type entry struct {
	collector source.Collector
	timeout   time.Duration
}

// Orchestrator coordinates one ingestion run at a time.
type Orchestrator struct {
	store      Store
	normalizer *normalize.Normalizer
	sources    []entry

	// runMu serializes runs; a scheduled tick that fires while a run is
	// still in flight waits instead of overlapping it.
	runMu sync.Mutex
}

func NewOrchestrator(store Store, normalizer *normalize.Normalizer) *Orchestrator {
	return &Orchestrator{store: store, normalizer: normalizer}
}

// Register adds a collector. timeout bounds that source's entire collection
// within a run; zero means no per-source deadline.
func (o *Orchestrator) Register(c source.Collector, timeout time.Duration) {
	o.sources = append(o.sources, entry{collector: c, timeout: timeout})
}

// SourceCount returns how many collectors are registered.
func (o *Orchestrator) SourceCount() int {
	return len(o.sources)
}

// Run executes one full ingestion run and returns its summary. The summary is
// non-nil even on error. A non-nil error means the run aborted early; partial
// results stored before the abort remain stored.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	run := &models.RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		Sources:   make(map[string]*models.FetchSummary, len(o.sources)),
	}
	logging.Info().
		Str("run_id", run.RunID.String()).
		Int("sources", len(o.sources)).
		Msg("ingestion run started")

	raw := o.collectAll(ctx, run)
	err := o.storeAll(ctx, run, raw)

	run.FinishedAt = time.Now().UTC()
	for _, s := range run.Sources {
		run.ItemsSeen += s.ItemsSeen
		run.Errors += s.ErrorCount()
	}

	o.finishRun(ctx, run, err)
	return run, err
}

// collectAll fans out to every registered collector and gathers raw items and
// per-source summaries. Collectors report their own failures through the
// summary, so the group never carries an error.
func (o *Orchestrator) collectAll(ctx context.Context, run *models.RunSummary) []models.RawItem {
	var mu sync.Mutex
	var raw []models.RawItem

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range o.sources {
		g.Go(func() error {
			cctx := gctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, e.timeout)
				defer cancel()
			}
			items, summary := e.collector.Collect(cctx)

			mu.Lock()
			raw = append(raw, items...)
			run.Sources[summary.Source] = summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return raw
}

// storeAll normalizes the raw items against the current work catalog and
// stores each surviving release. Per-item storage errors are counted and
// skipped; an unavailable store aborts the remainder of the run.
func (o *Orchestrator) storeAll(ctx context.Context, run *models.RunSummary, raw []models.RawItem) error {
	if len(raw) == 0 {
		return nil
	}

	works, err := o.store.ListWorks(ctx)
	if err != nil {
		run.Aborted = true
		return err
	}

	items, stats := o.normalizer.Normalize(raw, works)
	run.DuplicatesDiscarded += stats.Duplicates

	for i := range items {
		item := &items[i]
		outcome, err := o.store.StoreRelease(ctx, item)
		if err != nil {
			if database.IsUnavailable(err) || ctx.Err() != nil {
				run.Aborted = true
				return err
			}
			if s := run.Sources[item.Release.Source]; s != nil {
				s.RecordError("storage", err)
			}
			logging.Warn().Err(err).
				Str("title", item.Title).
				Str("number", item.Release.Number).
				Msg("release not stored")
			continue
		}

		s := run.Sources[item.Release.Source]
		switch outcome {
		case database.OutcomeCreated:
			run.ReleasesCreated++
			if s != nil {
				s.ItemsCreated++
			}
		case database.OutcomeAlreadyExists:
			run.DuplicatesDiscarded++
			if s != nil {
				s.ItemsDeduplicated++
			}
		}
	}
	return nil
}

// finishRun records metrics, persists the run row, and logs the outcome.
func (o *Orchestrator) finishRun(ctx context.Context, run *models.RunSummary, runErr error) {
	duration := run.FinishedAt.Sub(run.StartedAt)
	metrics.RunDuration.Observe(duration.Seconds())
	outcome := "completed"
	if run.Aborted {
		outcome = "aborted"
	} else {
		metrics.RunLastSuccess.SetToCurrentTime()
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()

	// Persist even aborted runs so operators can see them, but not on a
	// dead context and not when the store itself is what aborted us.
	if !database.IsUnavailable(runErr) {
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.store.InsertRun(insertCtx, run); err != nil {
			logging.Warn().Err(err).Msg("run summary not persisted")
		}
	}

	event := logging.Info()
	if runErr != nil {
		event = logging.Error().Err(runErr)
	}
	event.
		Str("run_id", run.RunID.String()).
		Str("outcome", outcome).
		Int("items_seen", run.ItemsSeen).
		Int("releases_created", run.ReleasesCreated).
		Int("duplicates_discarded", run.DuplicatesDiscarded).
		Int("errors", run.Errors).
		Dur("duration", duration).
		Msg("ingestion run finished")
}
