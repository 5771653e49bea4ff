// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package database

import "fmt"

// nullDateSentinel stands in for a missing release date inside the UNIQUE
// key. DuckDB treats NULLs as distinct in unique constraints, which would let
// undated duplicates through; the sentinel keeps the constraint honest. The
// value never leaves this package (see toStoredDate/fromStoredDate).
const nullDateSentinel = "9999-12-31"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS works (
		id UUID PRIMARY KEY,
		canonical_title TEXT NOT NULL,
		title_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		alt_titles TEXT NOT NULL DEFAULT '[]',
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE (title_key, kind)
	)`,

	`CREATE TABLE IF NOT EXISTS releases (
		id UUID PRIMARY KEY,
		work_id UUID NOT NULL,
		kind TEXT NOT NULL,
		number TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		release_date DATE NOT NULL,
		source TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		notified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (work_id, kind, number, platform, release_date)
	)`,

	`CREATE TABLE IF NOT EXISTS source_fetch_state (
		source TEXT PRIMARY KEY,
		etag TEXT NOT NULL DEFAULT '',
		last_modified TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		last_success TIMESTAMP,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ingest_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		items_seen INTEGER NOT NULL,
		releases_created INTEGER NOT NULL,
		duplicates_discarded INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		aborted BOOLEAN NOT NULL DEFAULT FALSE,
		summary TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_releases_work ON releases (work_id)`,
	`CREATE INDEX IF NOT EXISTS idx_releases_notified ON releases (notified, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs (started_at)`,
}

// initialize creates the schema. Statements are idempotent so reopening an
// existing database is a no-op.
func (db *DB) initialize() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
