// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package models

import "time"

// RawItem is an unnormalized release record as emitted by a SourceCollector,
// before canonicalization and deduplication. Field values are in the source's
// native shape (untrimmed titles, source-specific numbering).
type RawItem struct {
	// Source is the origin source identifier ("anilist", "calendar",
	// "rss:<feed name>").
	Source string `json:"source"`
	// Title as reported by the source, display form.
	Title string `json:"title"`
	// WorkKind is anime or manga; collectors infer it from the source
	// (the airing schedule only carries anime, feed parsing detects
	// volume markers).
	WorkKind WorkKind    `json:"work_kind"`
	Kind     ReleaseKind `json:"kind"`
	// Number is the episode/volume number string as reported ("12", "S2E01").
	Number   string `json:"number"`
	Platform string `json:"platform"`
	// ReleaseDate is nil when the source did not report a date.
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	URL         string     `json:"url,omitempty"`
}
