// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Release Feed</title>
    <item>
      <guid>ep-101</guid>
      <title>Frieren: Beyond Journey's End - Episode 12</title>
      <link>https://example.com/frieren/12</link>
      <pubDate>Fri, 28 Aug 2026 09:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Dungeon Meshi Vol. 8</title>
      <link>https://example.com/dungeon-meshi/8</link>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release Feed</title>
  <entry>
    <id>urn:release:1</id>
    <title>Spy x Family Episode 30</title>
    <link rel="alternate" href="https://example.com/spyfamily/30"/>
    <published>2026-08-28T09:00:00Z</published>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	entries, err := parseFeed([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.GUID != "ep-101" {
		t.Errorf("guid %q", first.GUID)
	}
	if first.Title != "Frieren: Beyond Journey's End - Episode 12" {
		t.Errorf("title %q", first.Title)
	}
	if first.Published == nil {
		t.Fatal("pubDate should parse")
	}
	if !first.Published.Equal(time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("published %s", first.Published)
	}

	// Missing GUID falls back to the link; missing pubDate stays nil.
	second := entries[1]
	if second.GUID != "https://example.com/dungeon-meshi/8" {
		t.Errorf("guid fallback %q", second.GUID)
	}
	if second.Published != nil {
		t.Errorf("missing pubDate should be nil, got %s", second.Published)
	}
}

func TestParseAtom(t *testing.T) {
	entries, err := parseFeed([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Title != "Spy x Family Episode 30" {
		t.Errorf("title %q", entry.Title)
	}
	if entry.Link != "https://example.com/spyfamily/30" {
		t.Errorf("link %q", entry.Link)
	}
	if entry.Published == nil {
		t.Error("published should parse")
	}
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     []byte(""),
		"html":      []byte("<html><body>error page</body></html>"),
		"truncated": []byte("<rss><channel><item><title>cut"),
	} {
		if _, err := parseFeed(data); err == nil {
			t.Errorf("%s input should fail to parse", name)
		}
	}
}

func TestParseFeedTimeLayouts(t *testing.T) {
	for _, value := range []string{
		"Fri, 28 Aug 2026 09:00:00 +0000",
		"Fri, 28 Aug 2026 09:00:00 GMT",
		"2026-08-28T09:00:00Z",
		"2026-08-28",
	} {
		if got := parseFeedTime(value); got == nil {
			t.Errorf("layout %q should parse", value)
		}
	}
	if got := parseFeedTime("next tuesday"); got != nil {
		t.Errorf("unparseable date should be nil, got %s", got)
	}
}
