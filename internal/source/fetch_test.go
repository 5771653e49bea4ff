// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayatori/shinchaku/internal/resilience"
)

func TestFetcherGetReturnsBodyAndTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	res, err := f.Get(context.Background(), srv.URL, nil, "", "", "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if res.NotModified {
		t.Error("fresh fetch should not report not-modified")
	}
	if string(res.Body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", res.Body)
	}
	if res.ETag != `"v1"` || res.LastModified == "" || res.Hash == "" {
		t.Errorf("caching tokens missing: %+v", res)
	}
}

func TestFetcherGetSendsConditionalHeaders(t *testing.T) {
	var gotETag, gotModSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModSince = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	res, err := f.Get(context.Background(), srv.URL, nil, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT", "prevhash")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if gotETag != `"v1"` || gotModSince == "" {
		t.Errorf("conditional headers not sent: etag=%q modsince=%q", gotETag, gotModSince)
	}
	if !res.NotModified {
		t.Error("304 should report not-modified")
	}
	if res.ETag != `"v1"` || res.Hash != "prevhash" {
		t.Errorf("304 should carry forward stored tokens, got %+v", res)
	}
}

func TestFetcherHashShortCircuit(t *testing.T) {
	// Server ignores conditional headers and replays the same body.
	body := []byte("same payload every time")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	first, err := f.Get(context.Background(), srv.URL, nil, "", "", "")
	if err != nil {
		t.Fatalf("first get failed: %v", err)
	}
	second, err := f.Get(context.Background(), srv.URL, nil, "", "", first.Hash)
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if !second.NotModified {
		t.Error("unchanged content hash should report not-modified")
	}
}

func TestFetcherClassifiesStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   resilience.ErrorClass
	}{
		{http.StatusInternalServerError, resilience.ClassTransient},
		{http.StatusBadGateway, resilience.ClassTransient},
		{http.StatusTooManyRequests, resilience.ClassRateLimited},
		{http.StatusNotFound, resilience.ClassPermanent},
		{http.StatusUnauthorized, resilience.ClassPermanent},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		f := NewFetcher(nil)
		_, err := f.Get(context.Background(), srv.URL, nil, "", "", "")
		srv.Close()
		if err == nil {
			t.Errorf("status %d should be an error", tt.status)
			continue
		}
		if got := resilience.Classify(err); got != tt.want {
			t.Errorf("status %d classified as %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestFetcherRateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	_, err := f.Get(context.Background(), srv.URL, nil, "", "", "")
	hint, ok := resilience.RetryAfterHint(err)
	if !ok || hint != 7*time.Second {
		t.Errorf("expected 7s retry-after hint, got %s ok=%v", hint, ok)
	}
}

func TestFetcherNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	f := NewFetcher(nil)
	_, err := f.Get(context.Background(), srv.URL, nil, "", "", "")
	if err == nil {
		t.Fatal("expected a network error")
	}
	if got := resilience.Classify(err); got != resilience.ClassTransient {
		t.Errorf("network errors should classify transient, got %q", got)
	}
}

func TestFetcherPostSendsJSON(t *testing.T) {
	var gotContentType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	header := http.Header{}
	header.Set("Authorization", "Bearer token123")
	body, err := f.Post(context.Background(), srv.URL, header, []byte(`{"query":"{}"}`))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type %q", gotContentType)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("auth header not passed through: %q", gotAuth)
	}
	if string(body) != `{"data":{}}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("30"); got != 30*time.Second {
		t.Errorf("delta-seconds: got %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty header: got %s", got)
	}
	if got := parseRetryAfter("not-a-date"); got != 0 {
		t.Errorf("garbage header: got %s", got)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got < 50*time.Second || got > time.Minute {
		t.Errorf("http-date form: got %s", got)
	}
}
