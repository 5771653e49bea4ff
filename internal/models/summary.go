// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package models

import (
	"time"

	"github.com/google/uuid"
)

// FetchSummary reports the outcome of one source's collection within a run.
// It is the unit operators read to distinguish "source is down" (open
// breaker) from "source returned bad data" (parse errors) from "nothing new"
// (zero items, closed breaker).
type FetchSummary struct {
	Source            string `json:"source"`
	ItemsSeen         int    `json:"items_seen"`
	ItemsCreated      int    `json:"items_created"`
	ItemsDeduplicated int    `json:"items_deduplicated"`
	// NotModified is true when a conditional fetch short-circuited (304 or
	// unchanged content hash).
	NotModified bool `json:"not_modified,omitempty"`
	// ErrorsByClass counts failures by error class name (transient,
	// rate_limited, permanent, parse, breaker_open).
	ErrorsByClass map[string]int `json:"errors_by_class,omitempty"`
	// BreakerState is the circuit breaker state at the end of the source's
	// collection: closed, half-open, or open.
	BreakerState string        `json:"breaker_state"`
	Duration     time.Duration `json:"duration"`
	// Err holds the terminal error message when collection ended early.
	// Items yielded before the terminal error remain valid and are counted
	// in ItemsSeen.
	Err string `json:"error,omitempty"`
}

// RecordError increments the class counter and remembers err as the terminal
// error message.
func (s *FetchSummary) RecordError(class string, err error) {
	if s.ErrorsByClass == nil {
		s.ErrorsByClass = make(map[string]int)
	}
	s.ErrorsByClass[class]++
	if err != nil {
		s.Err = err.Error()
	}
}

// ErrorCount returns the total number of recorded errors across classes.
func (s *FetchSummary) ErrorCount() int {
	n := 0
	for _, c := range s.ErrorsByClass {
		n += c
	}
	return n
}

// RunSummary aggregates one ingestion run across all sources.
type RunSummary struct {
	RunID      uuid.UUID                `json:"run_id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Sources    map[string]*FetchSummary `json:"sources"`
	// Totals across sources, after normalization and storage.
	ItemsSeen           int `json:"items_seen"`
	ReleasesCreated     int `json:"releases_created"`
	DuplicatesDiscarded int `json:"duplicates_discarded"`
	Errors              int `json:"errors"`
	// Aborted is true when the run stopped early (storage unavailable or
	// run-level cancellation). Per-source failures do not abort a run.
	Aborted bool `json:"aborted,omitempty"`
}

// SourceFetchState is the per-source cursor for conditional fetches. It is
// owned exclusively by that source's collector; the storage engine only
// loads and saves it.
type SourceFetchState struct {
	Source string `json:"source"`
	// ETag and LastModified are the opaque caching tokens from the last
	// successful response, replayed as If-None-Match / If-Modified-Since.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	// ContentHash is the SHA-256 of the last successfully parsed body, for
	// sources that do not honor conditional headers.
	ContentHash         string     `json:"content_hash,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
