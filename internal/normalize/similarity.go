// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package normalize

import (
	"math"
	"regexp"
	"strings"
)

// Similarity scores two title keys in [0, 1]. It takes the better of a
// character-level score (normalized Levenshtein, catches typos and small
// edits) and a token-level score (cosine over term counts, catches word
// reordering and subtitle variants). Inputs should already be TitleKey
// output.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	lev := levenshteinRatio(a, b)
	tok := tokenCosine(a, b)
	return math.Max(lev, tok)
}

// levenshteinRatio is 1 - editDistance/maxLen over runes, two-row DP.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(prev[len(rb)])/float64(maxLen)
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// tokenCosine is the cosine similarity of term-count vectors over tokens of
// length >= 2.
func tokenCosine(a, b string) float64 {
	va, na := termVector(a)
	vb, nb := termVector(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for token, count := range va {
		if other, ok := vb[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (na * nb)
}

func termVector(s string) (map[string]float64, float64) {
	raw := tokenSplit.Split(strings.ToLower(s), -1)
	counts := make(map[string]float64, len(raw))
	for _, token := range raw {
		if len(token) < 2 {
			continue
		}
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return counts, math.Sqrt(norm)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
