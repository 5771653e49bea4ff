// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayatori/shinchaku/internal/metrics"
	"github.com/ayatori/shinchaku/internal/models"
	"github.com/ayatori/shinchaku/internal/normalize"
)

// ErrReleaseNotFound is returned by MarkNotified for an unknown release ID.
var ErrReleaseNotFound = errors.New("release not found")

// Outcome reports what an upsert did.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
)

// storeReleaseAttempts bounds transaction retries after losing a write race.
const storeReleaseAttempts = 5

// StoreRelease persists one normalized item in a single transaction:
// create-or-get the work, merge alternate titles, insert the release. A
// uniqueness-constraint hit on the release is not an error; it comes back as
// OutcomeAlreadyExists via ON CONFLICT DO NOTHING and a zero affected-row
// count. Conflicts against rows another connection has not committed yet are
// retried (see storeRelease), so concurrent writers racing on one key never
// see a constraint error.
func (db *DB) StoreRelease(ctx context.Context, item *normalize.Item) (Outcome, error) {
	done := instrument("upsert", "releases")
	outcome, err := db.storeRelease(ctx, item)
	done(err)
	if err == nil && outcome == OutcomeAlreadyExists {
		metrics.ItemsDeduplicated.WithLabelValues("storage").Inc()
	}
	return outcome, err
}

// storeRelease runs the transaction, retrying when it loses a write race.
// DuckDB's ON CONFLICT clause only sees committed rows, so two in-flight
// transactions carrying the same key both pass their inserts and the loser
// fails with a constraint violation, either on the work insert or at commit.
// The retry re-reads the winner's now-committed rows and resolves cleanly,
// typically to OutcomeAlreadyExists.
func (db *DB) storeRelease(ctx context.Context, item *normalize.Item) (Outcome, error) {
	var outcome Outcome
	var err error
	for attempt := 0; attempt < storeReleaseAttempts; attempt++ {
		outcome, err = db.storeReleaseOnce(ctx, item)
		if err == nil || !isWriteConflict(err) {
			return outcome, err
		}
	}
	return outcome, err
}

// isWriteConflict matches DuckDB's constraint and transaction conflict
// errors. The driver surfaces these as plain strings through database/sql,
// with no typed error to unwrap.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint violation") ||
		strings.Contains(msg, "write-write conflict")
}

func (db *DB) storeReleaseOnce(ctx context.Context, item *normalize.Item) (Outcome, error) {
	tx, err := db.begin(ctx)
	if err != nil {
		return "", err
	}
	defer rollbackQuietly(tx)

	workID := item.WorkID
	if workID == uuid.Nil {
		existing, err := getWorkByKeyTx(ctx, tx, item.TitleKey, item.WorkKind)
		if err != nil {
			return "", err
		}
		if existing != nil {
			workID = *existing
			if err := appendAltTitlesTx(ctx, tx, workID, item.AltTitles); err != nil {
				return "", err
			}
		} else {
			work := newWorkRow(item.Title, item.TitleKey, item.WorkKind, item.WorkURL, item.AltTitles)
			if err := insertWorkTx(ctx, tx, work); err != nil {
				return "", err
			}
			workID = work.ID
		}
	} else if err := appendAltTitlesTx(ctx, tx, workID, item.AltTitles); err != nil {
		return "", err
	}

	rel := item.Release
	result, err := tx.ExecContext(ctx,
		`INSERT INTO releases (id, work_id, kind, number, platform, release_date, source, url, notified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?)
		 ON CONFLICT (work_id, kind, number, platform, release_date) DO NOTHING`,
		uuid.New(), workID, rel.Kind, rel.Number, rel.Platform,
		toStoredDate(rel.ReleaseDate), rel.Source, rel.URL, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert release: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit release: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return OutcomeAlreadyExists, nil
	}
	return OutcomeCreated, nil
}

// GetUnnotified returns up to limit releases pending delivery, oldest first.
func (db *DB) GetUnnotified(ctx context.Context, limit int) ([]models.Release, error) {
	if limit <= 0 {
		limit = 100
	}
	done := instrument("select", "releases")
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, work_id, kind, number, platform, release_date, source, url, notified, created_at
		 FROM releases WHERE NOT notified ORDER BY created_at LIMIT ?`, limit)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("get unnotified: %w", err)
	}
	defer rows.Close()

	var releases []models.Release
	for rows.Next() {
		var rel models.Release
		var stored time.Time
		if err := rows.Scan(&rel.ID, &rel.WorkID, &rel.Kind, &rel.Number, &rel.Platform,
			&stored, &rel.Source, &rel.URL, &rel.Notified, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rel.ReleaseDate = fromStoredDate(stored)
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}

// MarkNotified flips the delivery flag. Marking an already-notified release
// is a no-op success; an unknown ID is an error.
func (db *DB) MarkNotified(ctx context.Context, id uuid.UUID) error {
	done := instrument("update", "releases")
	result, err := db.conn.ExecContext(ctx,
		`UPDATE releases SET notified = TRUE WHERE id = ?`, id)
	done(err)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("release %s: %w", id, ErrReleaseNotFound)
	}
	return nil
}

// CountReleases returns the total number of stored releases.
func (db *DB) CountReleases(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM releases`).Scan(&n)
	return n, err
}

// CountUnnotified returns the delivery backlog size.
func (db *DB) CountUnnotified(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM releases WHERE NOT notified`).Scan(&n)
	return n, err
}

// CleanupReleases deletes notified releases older than the retention window
// and returns how many rows went away. Unnotified releases are never cleaned.
func (db *DB) CleanupReleases(ctx context.Context, retention time.Duration) (int64, error) {
	done := instrument("delete", "releases")
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM releases WHERE notified AND created_at < ?`,
		time.Now().UTC().Add(-retention))
	done(err)
	if err != nil {
		return 0, fmt.Errorf("cleanup releases: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// toStoredDate maps a nil release date onto the in-column sentinel so the
// UNIQUE constraint covers undated releases too.
func toStoredDate(date *time.Time) time.Time {
	if date == nil {
		sentinel, _ := time.Parse("2006-01-02", nullDateSentinel)
		return sentinel
	}
	return models.DateOnly(*date)
}

// fromStoredDate undoes the sentinel mapping at the read boundary.
func fromStoredDate(stored time.Time) *time.Time {
	if stored.Format("2006-01-02") == nullDateSentinel {
		return nil
	}
	d := models.DateOnly(stored)
	return &d
}
