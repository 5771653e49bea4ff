// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package collect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/database"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/normalize"
)

// memStore implements Store in memory. storeErrs maps a title to the error
// its StoreRelease call returns.
type memStore struct {
	mu        sync.Mutex
	works     []models.Work
	stored    []normalize.Item
	runs      []models.RunSummary
	listErr   error
	storeErrs map[string]error
	seen      map[string]bool
}

func (s *memStore) ListWorks(_ context.Context) ([]models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Work(nil), s.works...), nil
}

func (s *memStore) StoreRelease(_ context.Context, item *normalize.Item) (database.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storeErrs[item.Title]; err != nil {
		return "", err
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := item.TitleKey + "|" + string(item.Release.Kind) + "|" + item.Release.Number
	if s.seen[key] {
		return database.OutcomeAlreadyExists, nil
	}
	s.seen[key] = true
	s.stored = append(s.stored, *item)
	return database.OutcomeCreated, nil
}

func (s *memStore) InsertRun(_ context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memStore) storedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func (s *memStore) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// stubCollector yields canned items, or blocks until its context ends when
// block is set.
type stubCollector struct {
	name  string
	items []models.RawItem
	err   error
	block bool
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(ctx context.Context) ([]models.RawItem, *models.FetchSummary) {
	summary := &models.FetchSummary{Source: c.name, BreakerState: "closed"}
	if c.block {
		<-ctx.Done()
		summary.RecordError("timeout", ctx.Err())
		return nil, summary
	}
	summary.ItemsSeen = len(c.items)
	if c.err != nil {
		summary.RecordError("transient", c.err)
	}
	return c.items, summary
}

func rawItem(source, title, number string) models.RawItem {
	return models.RawItem{
		Source:   source,
		Title:    title,
		WorkKind: models.WorkAnime,
		Kind:     models.ReleaseEpisode,
		Number:   number,
		Platform: "Crunchyroll",
	}
}

func newTestOrchestrator(store Store) *Orchestrator {
	normalizer := normalize.New(config.NormalizerConfig{
		ReleaseMergeThreshold: 0.85,
		WorkMatchThreshold:    0.90,
	})
	return NewOrchestrator(store, normalizer)
}

func TestRunCollectsFromAllSources(t *testing.T) {
	store := &memStore{}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
		rawItem("anilist", "Dungeon Meshi", "3"),
	}}, 0)
	o.Register(&stubCollector{name: "rss:nyaa", items: []models.RawItem{
		rawItem("rss:nyaa", "Frieren", "12"), // cross-source duplicate
	}}, 0)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Aborted {
		t.Error("run should not be aborted")
	}
	if len(run.Sources) != 2 {
		t.Fatalf("expected 2 source summaries, got %d", len(run.Sources))
	}
	if run.ItemsSeen != 3 {
		t.Errorf("items seen = %d, want 3", run.ItemsSeen)
	}
	if run.ReleasesCreated != 2 {
		t.Errorf("releases created = %d, want 2", run.ReleasesCreated)
	}
	if run.DuplicatesDiscarded != 1 {
		t.Errorf("duplicates = %d, want 1", run.DuplicatesDiscarded)
	}
	if store.storedCount() != 2 {
		t.Errorf("stored %d releases, want 2", store.storedCount())
	}
	if store.runCount() != 1 {
		t.Errorf("run summary not persisted")
	}
}

func TestRunSourceFailureDoesNotAbort(t *testing.T) {
	store := &memStore{}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "calendar", err: errors.New("upstream down")}, 0)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
	}}, 0)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("one failed source must not fail the run: %v", err)
	}
	if run.Aborted {
		t.Error("run should not be aborted")
	}
	if run.Errors != 1 {
		t.Errorf("errors = %d, want 1", run.Errors)
	}
	if run.ReleasesCreated != 1 {
		t.Errorf("healthy source's item should be stored, created = %d", run.ReleasesCreated)
	}
}

func TestRunStorageDuplicateCounted(t *testing.T) {
	store := &memStore{seen: map[string]bool{
		normalizeKeyForTest("Frieren", "12"): true,
	}}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
	}}, 0)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if run.ReleasesCreated != 0 || run.DuplicatesDiscarded != 1 {
		t.Errorf("created=%d dups=%d, want 0/1", run.ReleasesCreated, run.DuplicatesDiscarded)
	}
	if s := run.Sources["anilist"]; s.ItemsDeduplicated != 1 {
		t.Errorf("per-source dedup count = %d, want 1", s.ItemsDeduplicated)
	}
}

func normalizeKeyForTest(title, number string) string {
	return normalize.TitleKey(title) + "|" + string(models.ReleaseEpisode) + "|" + number
}

func TestRunAbortsWhenStoreUnavailable(t *testing.T) {
	unavailable := &database.UnavailableError{Err: errors.New("database closed")}
	store := &memStore{storeErrs: map[string]error{
		"Frieren":       unavailable,
		"Dungeon Meshi": unavailable,
	}}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
		rawItem("anilist", "Dungeon Meshi", "3"),
	}}, 0)

	run, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("unavailable store must abort the run")
	}
	if !database.IsUnavailable(err) {
		t.Errorf("abort error should stay classified: %v", err)
	}
	if !run.Aborted {
		t.Error("run should be marked aborted")
	}
	if store.storedCount() != 0 {
		t.Errorf("nothing should be stored, got %d", store.storedCount())
	}
}

func TestRunPerItemStorageErrorContinues(t *testing.T) {
	store := &memStore{storeErrs: map[string]error{
		"Frieren": errors.New("constraint violation"),
	}}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
		rawItem("anilist", "Dungeon Meshi", "3"),
	}}, 0)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("a per-item storage error must not abort: %v", err)
	}
	if run.Aborted {
		t.Error("run should not be aborted")
	}
	if run.ReleasesCreated != 1 {
		t.Errorf("remaining items should still be stored, created = %d", run.ReleasesCreated)
	}
	if s := run.Sources["anilist"]; s.ErrorsByClass["storage"] != 1 {
		t.Errorf("storage error not recorded on the source summary: %+v", s.ErrorsByClass)
	}
}

func TestRunPerSourceTimeout(t *testing.T) {
	store := &memStore{}
	o := newTestOrchestrator(store)
	o.Register(&stubCollector{name: "calendar", block: true}, 20*time.Millisecond)
	o.Register(&stubCollector{name: "anilist", items: []models.RawItem{
		rawItem("anilist", "Frieren", "12"),
	}}, 0)

	start := time.Now()
	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("blocked source held the run for %v", elapsed)
	}
	if s := run.Sources["calendar"]; s == nil || s.ErrorCount() == 0 {
		t.Error("timed-out source should report its failure")
	}
	if run.ReleasesCreated != 1 {
		t.Errorf("healthy source should still store, created = %d", run.ReleasesCreated)
	}
}

func TestRunWithNoSources(t *testing.T) {
	store := &memStore{}
	o := newTestOrchestrator(store)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if run.ItemsSeen != 0 || run.Aborted {
		t.Errorf("empty run should finish clean: %+v", run)
	}
	if store.runCount() != 1 {
		t.Error("empty runs are still recorded")
	}
}

func TestSchedulerRunsOnStartup(t *testing.T) {
	store := &memStore{}
	o := newTestOrchestrator(store)
	scheduler := NewScheduler(o, config.CollectConfig{
		Interval:     time.Hour,
		RunOnStartup: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for store.runCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup run never happened")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve should return the context error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
