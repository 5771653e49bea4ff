// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package normalize

import "testing"

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("attack on titan", "attack on titan"); got != 1 {
		t.Errorf("identical strings should score 1, got %g", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", "attack on titan"); got != 0 {
		t.Errorf("empty string should score 0, got %g", got)
	}
}

func TestSimilarityNearDuplicates(t *testing.T) {
	// Pairs that should clear the 0.85 release-merge threshold.
	pairs := [][2]string{
		{"attack on titan", "attack on titans"},
		{"frieren beyond journeys end", "frieren: beyond journey's end"},
		{"sousou no frieren", "sousou no frieren"},
	}
	for _, p := range pairs {
		if got := Similarity(p[0], p[1]); got < 0.85 {
			t.Errorf("Similarity(%q, %q) = %g, want >= 0.85", p[0], p[1], got)
		}
	}
}

func TestSimilarityTokenReordering(t *testing.T) {
	// Token pass catches reordered words that edit distance punishes.
	if got := Similarity("titan on attack", "attack on titan"); got < 0.85 {
		t.Errorf("reordered tokens should score high, got %g", got)
	}
}

func TestSimilarityDistinctTitles(t *testing.T) {
	pairs := [][2]string{
		{"attack on titan", "dungeon meshi"},
		{"frieren", "one piece"},
		{"oshi no ko", "spy x family"},
	}
	for _, p := range pairs {
		if got := Similarity(p[0], p[1]); got >= 0.85 {
			t.Errorf("Similarity(%q, %q) = %g, should stay below 0.85", p[0], p[1], got)
		}
	}
}

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"abc", "abd", 2.0 / 3.0},
		{"abcd", "abc", 0.75},
	}
	for _, tt := range tests {
		got := levenshteinRatio(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("levenshteinRatio(%q, %q) = %g, want %g", tt.a, tt.b, got, tt.want)
		}
	}
}
