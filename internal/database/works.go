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
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ayatori/shinchaku/internal/models"
)

// ListWorks returns the full work catalog. The normalizer loads it once per
// run for title resolution; the catalog stays small (one row per tracked
// title).
func (db *DB) ListWorks(ctx context.Context) ([]models.Work, error) {
	done := instrument("select", "works")
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, canonical_title, title_key, kind, alt_titles, url, created_at
		 FROM works ORDER BY created_at`)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	defer rows.Close()

	var works []models.Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, work)
	}
	return works, rows.Err()
}

// GetWork returns one work by ID.
func (db *DB) GetWork(ctx context.Context, id uuid.UUID) (*models.Work, error) {
	done := instrument("select", "works")
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, canonical_title, title_key, kind, alt_titles, url, created_at
		 FROM works WHERE id = ?`, id)
	work, err := scanWork(row)
	done(err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work: %w", err)
	}
	return &work, nil
}

// CountWorks returns the catalog size.
func (db *DB) CountWorks(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM works`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWork(row rowScanner) (models.Work, error) {
	var work models.Work
	var altJSON string
	if err := row.Scan(&work.ID, &work.CanonicalTitle, &work.TitleKey,
		&work.Kind, &altJSON, &work.URL, &work.CreatedAt); err != nil {
		return models.Work{}, err
	}
	if err := json.Unmarshal([]byte(altJSON), &work.AltTitles); err != nil {
		return models.Work{}, fmt.Errorf("decode alt titles for work %s: %w", work.ID, err)
	}
	return work, nil
}

// getWorkForUpdateTx loads the fields needed to merge alt titles.
func getWorkForUpdateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (altTitles []string, err error) {
	var altJSON string
	err = tx.QueryRowContext(ctx, `SELECT alt_titles FROM works WHERE id = ?`, id).Scan(&altJSON)
	if err != nil {
		return nil, fmt.Errorf("load work %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(altJSON), &altTitles); err != nil {
		return nil, fmt.Errorf("decode alt titles: %w", err)
	}
	return altTitles, nil
}

// getWorkByKeyTx returns the work matching (title_key, kind), or nil.
func getWorkByKeyTx(ctx context.Context, tx *sql.Tx, titleKey string, kind models.WorkKind) (*uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM works WHERE title_key = ? AND kind = ?`, titleKey, kind).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup work by key: %w", err)
	}
	return &id, nil
}

func insertWorkTx(ctx context.Context, tx *sql.Tx, work *models.Work) error {
	altJSON, err := json.Marshal(altOrEmpty(work.AltTitles))
	if err != nil {
		return fmt.Errorf("encode alt titles: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO works (id, canonical_title, title_key, kind, alt_titles, url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		work.ID, work.CanonicalTitle, work.TitleKey, work.Kind,
		string(altJSON), work.URL, work.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert work: %w", err)
	}
	return nil
}

// appendAltTitlesTx merges additions into the work's alternate-title list,
// skipping titles it already has.
func appendAltTitlesTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, additions []string) error {
	if len(additions) == 0 {
		return nil
	}
	current, err := getWorkForUpdateTx(ctx, tx, id)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(current))
	for _, t := range current {
		known[t] = true
	}
	changed := false
	for _, t := range additions {
		if t == "" || known[t] {
			continue
		}
		known[t] = true
		current = append(current, t)
		changed = true
	}
	if !changed {
		return nil
	}

	altJSON, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode alt titles: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE works SET alt_titles = ? WHERE id = ?`, string(altJSON), id); err != nil {
		return fmt.Errorf("update alt titles: %w", err)
	}
	return nil
}

func altOrEmpty(titles []string) []string {
	if titles == nil {
		return []string{}
	}
	return titles
}

func newWorkRow(title, titleKey string, kind models.WorkKind, url string, alts []string) *models.Work {
	return &models.Work{
		ID:             uuid.New(),
		CanonicalTitle: title,
		TitleKey:       titleKey,
		AltTitles:      alts,
		Kind:           kind,
		URL:            url,
		CreatedAt:      time.Now().UTC(),
	}
}
