// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/models"
)

// memStateStore is an in-memory StateStore for tests.
type memStateStore struct {
	mu     sync.Mutex
	states map[string]*models.SourceFetchState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: make(map[string]*models.SourceFetchState)}
}

func (m *memStateStore) GetFetchState(_ context.Context, source string) (*models.SourceFetchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[source]; ok {
		copied := *state
		return &copied, nil
	}
	return nil, nil
}

func (m *memStateStore) PutFetchState(_ context.Context, state *models.SourceFetchState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.Source] = &copied
	return nil
}

// testResilience returns tight settings so tests never wait on real backoff.
func testResilience() config.ResilienceConfig {
	return config.ResilienceConfig{
		RateLimit:        1000,
		RateWindow:       time.Second,
		BurstFraction:    1.0,
		BreakerThreshold: 10,
		BreakerCooldown:  time.Minute,
		RetryAttempts:    1,
		RetryBaseDelay:   time.Millisecond,
		SourceTimeout:    time.Minute,
	}
}

func mustParseDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad date %q: %v", value, err)
	}
	return parsed
}

func TestLoadStateFallsBackToEmpty(t *testing.T) {
	state := loadState(context.Background(), newMemStateStore(), "anilist")
	if state == nil || state.Source != "anilist" {
		t.Fatalf("expected empty state for unknown source, got %+v", state)
	}

	state = loadState(context.Background(), nil, "anilist")
	if state == nil || state.Source != "anilist" {
		t.Fatalf("nil store should still yield an empty state, got %+v", state)
	}
}

func TestSaveStateTracksConsecutiveFailures(t *testing.T) {
	store := newMemStateStore()
	ctx := context.Background()

	state := &models.SourceFetchState{Source: "calendar"}
	saveState(ctx, store, state, false)
	saveState(ctx, store, state, false)
	if state.ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", state.ConsecutiveFailures)
	}
	if state.LastSuccess != nil {
		t.Error("failures should not set LastSuccess")
	}

	saveState(ctx, store, state, true)
	if state.ConsecutiveFailures != 0 {
		t.Errorf("success should reset the failure count, got %d", state.ConsecutiveFailures)
	}
	if state.LastSuccess == nil {
		t.Error("success should set LastSuccess")
	}

	stored, err := store.GetFetchState(ctx, "calendar")
	if err != nil || stored == nil {
		t.Fatalf("state should be persisted: %v", err)
	}
	if stored.ConsecutiveFailures != 0 {
		t.Errorf("persisted state should reflect the last save, got %d failures", stored.ConsecutiveFailures)
	}
}
