// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// feedEntry is one item from a release feed, format-independent.
type feedEntry struct {
	GUID      string
	Title     string
	Link      string
	Published *time.Time
}

// parseFeed auto-detects and parses RSS 2.0 or Atom 1.0 XML. The root element
// decides the format: <rss> (or <rdf>) is RSS, <feed> is Atom.
func parseFeed(data []byte) ([]feedEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty feed document")
	}
	switch detectFeedFormat(trimmed) {
	case "rss":
		return parseRSSFeed(data)
	case "atom":
		return parseAtomFeed(data)
	default:
		return nil, fmt.Errorf("unknown feed format (expected <rss> or <feed> root)")
	}
}

func detectFeedFormat(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss", "rdf":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssEntry `xml:"item"`
	} `xml:"channel"`
}

type rssEntry struct {
	GUID    string `xml:"guid"`
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

func parseRSSFeed(data []byte) ([]feedEntry, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	entries := make([]feedEntry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		guid := strings.TrimSpace(item.GUID)
		if guid == "" {
			guid = strings.TrimSpace(item.Link)
		}
		entries = append(entries, feedEntry{
			GUID:      guid,
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: parseFeedTime(item.PubDate),
		})
	}
	return entries, nil
}

type atomDoc struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		ID        string        `xml:"id"`
		Title     string        `xml:"title"`
		Links     []atomDocLink `xml:"link"`
		Published string        `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

type atomDocLink struct {
	XMLName xml.Name `xml:"link"`
	Href    string   `xml:"href,attr"`
	Rel     string   `xml:"rel,attr"`
}

func parseAtomFeed(data []byte) ([]feedEntry, error) {
	var doc atomDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse atom: %w", err)
	}

	entries := make([]feedEntry, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		link := atomEntryLink(entry.Links)
		guid := strings.TrimSpace(entry.ID)
		if guid == "" {
			guid = link
		}
		published := entry.Published
		if strings.TrimSpace(published) == "" {
			published = entry.Updated
		}
		entries = append(entries, feedEntry{
			GUID:      guid,
			Title:     strings.TrimSpace(entry.Title),
			Link:      link,
			Published: parseFeedTime(published),
		})
	}
	return entries, nil
}

func atomEntryLink(links []atomDocLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// feedTimeLayouts covers the date formats seen in the wild across RSS and
// Atom feeds.
var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02",
}

// parseFeedTime returns nil for empty or unparseable dates; a missing date is
// information the normalizer handles, not an error.
func parseFeedTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
