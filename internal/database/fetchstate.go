// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ayatori/shinchaku/internal/models"
)

// GetFetchState loads the conditional-fetch cursor for one source; nil when
// the source has never persisted one.
func (db *DB) GetFetchState(ctx context.Context, source string) (*models.SourceFetchState, error) {
	done := instrument("select", "source_fetch_state")
	row := db.conn.QueryRowContext(ctx,
		`SELECT source, etag, last_modified, content_hash, last_success, consecutive_failures, updated_at
		 FROM source_fetch_state WHERE source = ?`, source)

	var state models.SourceFetchState
	var lastSuccess sql.NullTime
	err := row.Scan(&state.Source, &state.ETag, &state.LastModified, &state.ContentHash,
		&lastSuccess, &state.ConsecutiveFailures, &state.UpdatedAt)
	done(err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fetch state: %w", err)
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time
		state.LastSuccess = &t
	}
	return &state, nil
}

// PutFetchState upserts the cursor for one source.
func (db *DB) PutFetchState(ctx context.Context, state *models.SourceFetchState) error {
	done := instrument("upsert", "source_fetch_state")
	var lastSuccess sql.NullTime
	if state.LastSuccess != nil {
		lastSuccess = sql.NullTime{Time: *state.LastSuccess, Valid: true}
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO source_fetch_state (source, etag, last_modified, content_hash, last_success, consecutive_failures, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source) DO UPDATE SET
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			content_hash = excluded.content_hash,
			last_success = excluded.last_success,
			consecutive_failures = excluded.consecutive_failures,
			updated_at = excluded.updated_at`,
		state.Source, state.ETag, state.LastModified, state.ContentHash,
		lastSuccess, state.ConsecutiveFailures, state.UpdatedAt)
	done(err)
	if err != nil {
		return fmt.Errorf("put fetch state: %w", err)
	}
	return nil
}
