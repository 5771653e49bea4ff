// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package normalize

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
	"github.com/ayatori/shinchaku/internal/models"
)

// Item is one deduplicated release, resolved against the Work catalog and
// ready for storage.
type Item struct {
	// WorkID is the matched existing work; uuid.Nil means the work is new
	// this run and storage must create it from Title/TitleKey/WorkKind.
	WorkID   uuid.UUID
	Title    string
	TitleKey string
	WorkKind models.WorkKind
	WorkURL  string
	// AltTitles are observed title variants to append to the work.
	AltTitles []string
	// Release has Kind, Number, Platform, ReleaseDate, Source, and URL
	// filled; IDs are assigned by storage.
	Release models.Release
}

// Stats counts what the pass discarded.
type Stats struct {
	Duplicates int
	ByLayer    map[string]int // "exact", "fuzzy"
}

// Normalizer holds the fuzzy thresholds. One instance serves the whole
// process; Normalize itself is stateless across runs.
type Normalizer struct {
	releaseThreshold float64
	workThreshold    float64
}

func New(cfg config.NormalizerConfig) *Normalizer {
	return &Normalizer{
		releaseThreshold: cfg.ReleaseMergeThreshold,
		workThreshold:    cfg.WorkMatchThreshold,
	}
}

// entry is a raw item in canonical comparison form, mutable during merging.
type entry struct {
	display  string
	key      string
	workKind models.WorkKind
	kind     models.ReleaseKind
	number   string
	platform string
	date     *time.Time
	source   string
	url      string
	alts     []string
}

// Normalize canonicalizes and deduplicates one run's worth of raw items and
// resolves each survivor against the existing works. Input order is
// first-seen order; the first occurrence of a duplicate set wins its title.
func (n *Normalizer) Normalize(raw []models.RawItem, existing []models.Work) ([]Item, Stats) {
	stats := Stats{ByLayer: map[string]int{}}

	entries := n.exactPass(raw, &stats)
	entries = n.fuzzyPass(entries, &stats)
	items := n.resolveWorks(entries, existing)

	if stats.Duplicates > 0 {
		logging.Debug().
			Int("in", len(raw)).
			Int("out", len(items)).
			Int("exact", stats.ByLayer["exact"]).
			Int("fuzzy", stats.ByLayer["fuzzy"]).
			Msg("deduplication pass finished")
	}
	return items, stats
}

// exactPass collapses items sharing the full dedup key: title key, release
// kind, normalized number, platform, and date. A nil date matches any date so
// an undated report merges with the dated one (the dated side wins the
// metadata).
func (n *Normalizer) exactPass(raw []models.RawItem, stats *Stats) []*entry {
	buckets := make(map[string][]*entry, len(raw))
	var kept []*entry

	for _, item := range raw {
		e := toEntry(item)
		if e == nil {
			continue
		}
		key := e.key + "\x00" + string(e.kind) + "\x00" + e.number + "\x00" +
			strings.ToLower(e.platform)
		merged := false
		for _, prior := range buckets[key] {
			if !datesCompatible(prior.date, e.date) {
				continue
			}
			prior.absorb(e)
			stats.Duplicates++
			stats.ByLayer["exact"]++
			metrics.ItemsDeduplicated.WithLabelValues("exact").Inc()
			merged = true
			break
		}
		if merged {
			continue
		}
		buckets[key] = append(buckets[key], e)
		kept = append(kept, e)
	}
	return kept
}

// fuzzyPass merges cross-source near-duplicates: same kind, number, and
// date, different titles that score above the release threshold. The
// first-seen entry keeps its title; the merged title becomes an alternate.
func (n *Normalizer) fuzzyPass(entries []*entry, stats *Stats) []*entry {
	groups := make(map[string][]*entry)
	var kept []*entry

	for _, e := range entries {
		groupKey := string(e.kind) + "\x00" + e.number
		merged := false
		for _, prior := range groups[groupKey] {
			if prior.key == e.key {
				continue // same title on another platform is a distinct event
			}
			if !datesCompatible(prior.date, e.date) {
				continue
			}
			if Similarity(prior.key, e.key) >= n.releaseThreshold {
				prior.absorb(e)
				stats.Duplicates++
				stats.ByLayer["fuzzy"]++
				metrics.ItemsDeduplicated.WithLabelValues("fuzzy").Inc()
				merged = true
				break
			}
		}
		if merged {
			continue
		}
		groups[groupKey] = append(groups[groupKey], e)
		kept = append(kept, e)
	}
	return kept
}

// resolveWorks maps each surviving entry onto the work catalog: exact title
// key first, then the best fuzzy match above the work threshold, else a new
// work.
func (n *Normalizer) resolveWorks(entries []*entry, existing []models.Work) []Item {
	byKey := make(map[string]*models.Work, len(existing))
	for i := range existing {
		w := &existing[i]
		byKey[string(w.Kind)+"\x00"+w.TitleKey] = w
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{
			Title:    e.display,
			TitleKey: e.key,
			WorkKind: e.workKind,
			WorkURL:  e.url,
			Release: models.Release{
				Kind:        e.kind,
				Number:      e.number,
				Platform:    e.platform,
				ReleaseDate: e.date,
				Source:      e.source,
				URL:         e.url,
			},
		}

		if w, ok := byKey[string(e.workKind)+"\x00"+e.key]; ok {
			item.WorkID = w.ID
			item.Title = w.CanonicalTitle
			item.TitleKey = w.TitleKey
			item.AltTitles = altTitlesFor(w, e)
		} else if w := n.bestWorkMatch(e, existing); w != nil {
			item.WorkID = w.ID
			item.Title = w.CanonicalTitle
			item.TitleKey = w.TitleKey
			item.AltTitles = altTitlesFor(w, e)
		} else {
			item.AltTitles = e.alts
		}
		items = append(items, item)
	}
	return items
}

func (n *Normalizer) bestWorkMatch(e *entry, existing []models.Work) *models.Work {
	var best *models.Work
	bestScore := n.workThreshold
	for i := range existing {
		w := &existing[i]
		if w.Kind != e.workKind {
			continue
		}
		if score := Similarity(w.TitleKey, e.key); score >= bestScore {
			best = w
			bestScore = score
		}
	}
	return best
}

// altTitlesFor collects the entry's title variants the work does not know
// yet. The entry's own display title counts when it differs from the work's
// canonical one.
func altTitlesFor(w *models.Work, e *entry) []string {
	known := make(map[string]bool, len(w.AltTitles)+1)
	known[w.CanonicalTitle] = true
	for _, t := range w.AltTitles {
		known[t] = true
	}

	var alts []string
	for _, candidate := range append([]string{e.display}, e.alts...) {
		if candidate == "" || known[candidate] {
			continue
		}
		known[candidate] = true
		alts = append(alts, candidate)
	}
	return alts
}

// toEntry canonicalizes one raw item. Items without a usable title or number
// are dropped here rather than poisoning the key space.
func toEntry(item models.RawItem) *entry {
	display := CleanTitle(item.Title)
	if display == "" {
		return nil
	}
	number := NormalizeNumber(item.Number)
	if number == "" {
		return nil
	}
	var date *time.Time
	if item.ReleaseDate != nil {
		d := models.DateOnly(*item.ReleaseDate)
		date = &d
	}
	return &entry{
		display:  display,
		key:      TitleKey(item.Title),
		workKind: item.WorkKind,
		kind:     item.Kind,
		number:   number,
		platform: strings.TrimSpace(item.Platform),
		date:     date,
		source:   item.Source,
		url:      strings.TrimSpace(item.URL),
	}
}

// absorb folds other into e, preferring whichever side has richer metadata.
// Other's display title and any alternates other has already accumulated
// become alternates of e; variants picked up in the exact pass survive a
// later fuzzy merge this way.
func (e *entry) absorb(other *entry) {
	if e.date == nil && other.date != nil {
		e.date = other.date
	}
	if e.url == "" {
		e.url = other.url
	}
	if e.platform == "" {
		e.platform = other.platform
	}
	known := map[string]bool{e.display: true}
	for _, t := range e.alts {
		known[t] = true
	}
	for _, t := range append([]string{other.display}, other.alts...) {
		if t == "" || known[t] {
			continue
		}
		known[t] = true
		e.alts = append(e.alts, t)
	}
}

// datesCompatible reports whether two release dates describe the same event:
// equal dates, or one side missing its date.
func datesCompatible(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	return a.Equal(*b)
}
