// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package normalize canonicalizes raw release items and deduplicates them
// within a run: exact-key collapse first, then fuzzy title matching for
// cross-source near-duplicates, then resolution against the existing Work
// catalog.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// bracketPrefix matches leading source annotations like "[HorribleSubs]" or
// "(Official)". Only leading brackets are stripped; bracketed text inside a
// title is part of the title.
var bracketPrefix = regexp.MustCompile(`^\s*(?:\[[^\]]*\]|\([^)]*\))\s*`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanTitle produces the display form of a raw title: bracketed prefixes
// stripped, whitespace trimmed and collapsed. Case and width are preserved;
// this is the form stored as a Work's canonical title.
func CleanTitle(raw string) string {
	s := raw
	for {
		stripped := bracketPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// TitleKey produces the comparison form used for exact matching and as the
// uniqueness key for Works: the cleaned title, full-width characters folded
// to their half-width equivalents, compatibility-normalized, lower-cased.
func TitleKey(raw string) string {
	s := CleanTitle(raw)
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	return strings.ToLower(s)
}

// numberSegment matches a run of digits, for leading-zero trimming.
var numberSegment = regexp.MustCompile(`\d+`)

// NormalizeNumber puts a release number string into comparison form:
// upper-cased and with leading zeros trimmed from every digit run, so "01",
// "1", "s2e01", and "S2E1" collide where they should.
func NormalizeNumber(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return numberSegment.ReplaceAllStringFunc(s, func(digits string) string {
		trimmed := strings.TrimLeft(digits, "0")
		if trimmed == "" {
			return "0"
		}
		return trimmed
	})
}
