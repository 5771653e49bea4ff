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

	json "github.com/goccy/go-json"

	"github.com/ayatori/shinchaku/internal/models"
)

// InsertRun records one finished ingestion run, aggregate columns for
// querying plus the full per-source summary as JSON.
func (db *DB) InsertRun(ctx context.Context, run *models.RunSummary) error {
	summaryJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	done := instrument("insert", "ingest_runs")
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at, finished_at, items_seen, releases_created, duplicates_discarded, errors, aborted, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.ItemsSeen, run.ReleasesCreated,
		run.DuplicatesDiscarded, run.Errors, run.Aborted, string(summaryJSON))
	done(err)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run summary, nil when no run has
// finished yet.
func (db *DB) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	done := instrument("select", "ingest_runs")
	var summaryJSON string
	err := db.conn.QueryRowContext(ctx,
		`SELECT summary FROM ingest_runs ORDER BY started_at DESC LIMIT 1`).Scan(&summaryJSON)
	done(err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}

	var run models.RunSummary
	if err := json.Unmarshal([]byte(summaryJSON), &run); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &run, nil
}

// RunHistory returns recent run summaries, newest first.
func (db *DB) RunHistory(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	done := instrument("select", "ingest_runs")
	rows, err := db.conn.QueryContext(ctx,
		`SELECT summary FROM ingest_runs ORDER BY started_at DESC LIMIT ?`, limit)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, err
		}
		var run models.RunSummary
		if err := json.Unmarshal([]byte(summaryJSON), &run); err != nil {
			return nil, fmt.Errorf("decode run summary: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
