// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package models holds the canonical entity definitions shared by the
// collectors, the normalizer, and the storage engine. Each entity is defined
// exactly once here and imported everywhere; do not redeclare partial copies
// in other packages.
package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkKind distinguishes the two tracked media types.
type WorkKind string

const (
	WorkAnime WorkKind = "anime"
	WorkManga WorkKind = "manga"
)

// ReleaseKind distinguishes episode events from volume events.
type ReleaseKind string

const (
	ReleaseEpisode ReleaseKind = "episode"
	ReleaseVolume  ReleaseKind = "volume"
)

// Work is a logical title (one anime or manga). Works are created on first
// sighting from any source and never deleted; later sightings may append
// alternate titles.
type Work struct {
	ID             uuid.UUID `json:"id"`
	CanonicalTitle string    `json:"canonical_title"`
	// TitleKey is the canonicalized comparison form of CanonicalTitle
	// (see normalize.TitleKey). Unique across works.
	TitleKey  string    `json:"title_key"`
	AltTitles []string  `json:"alt_titles,omitempty"`
	Kind      WorkKind  `json:"kind"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Release is a single episode/volume event tied to a Work.
//
// The tuple (WorkID, Kind, Number, Platform, ReleaseDate) is the dedup key;
// it is enforced as a UNIQUE constraint at the storage boundary. Releases are
// never mutated after insert except for the Notified flag.
type Release struct {
	ID       uuid.UUID   `json:"id"`
	WorkID   uuid.UUID   `json:"work_id"`
	Kind     ReleaseKind `json:"kind"`
	Number   string      `json:"number"`
	Platform string      `json:"platform"`
	// ReleaseDate is a calendar date; nil when the source did not report one.
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Source      string     `json:"source"`
	URL         string     `json:"url,omitempty"`
	Notified    bool       `json:"notified"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
