// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayatori/shinchaku/internal/resilience"
)

const (
	defaultMaxBody   = 10 * 1024 * 1024 // 10MB
	defaultUserAgent = "shinchaku/1.0 (+https://github.com/ayatori/shinchaku)"
	maxRedirects     = 5
)

// FetchResult is the outcome of one conditional GET.
type FetchResult struct {
	Body []byte
	// NotModified is true on a 304 response or when the body hash matched
	// the previous fetch. Body is empty in that case.
	NotModified bool
	StatusCode  int
	// ETag, LastModified, and Hash are the caching tokens to persist for
	// the next fetch.
	ETag         string
	LastModified string
	Hash         string
}

// Fetcher performs HTTP requests with conditional GET and classifies failures
// into the resilience error taxonomy. One instance is shared across all
// collectors; per-call state travels in the arguments.
type Fetcher struct {
	client    *http.Client
	maxBody   int64
	userAgent string
}

// NewFetcher builds a Fetcher. A nil client gets a default with a redirect
// cap; per-request deadlines come from the caller's context, not a client
// timeout, so the per-source deadline stays the single budget.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
	return &Fetcher{client: client, maxBody: defaultMaxBody, userAgent: defaultUserAgent}
}

// Get performs a conditional GET. etag, lastMod, and prevHash come from the
// stored fetch state; empty values skip the corresponding mechanism. header
// may carry per-source auth and is optional.
//
// Failures come back classified: network errors and 5xx as transient, 429 as
// rate-limited with the server's Retry-After hint, other 4xx as permanent.
func (f *Fetcher) Get(ctx context.Context, url string, header http.Header, etag, lastMod, prevHash string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Transient(fmt.Errorf("http get: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			NotModified:  true,
			StatusCode:   resp.StatusCode,
			ETag:         firstNonEmpty(resp.Header.Get("ETag"), etag),
			LastModified: firstNonEmpty(resp.Header.Get("Last-Modified"), lastMod),
			Hash:         prevHash,
		}, nil
	}
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read body: %w", err))
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(body))
	if prevHash != "" && hash == prevHash {
		// Source ignored the conditional headers but the content is the
		// same payload as last time.
		return &FetchResult{
			NotModified:  true,
			StatusCode:   resp.StatusCode,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Hash:         hash,
		}, nil
	}

	return &FetchResult{
		Body:         body,
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Hash:         hash,
	}, nil
}

// Post sends a JSON payload and returns the response body, with the same
// failure classification as Get. Used by the GraphQL source; no conditional
// caching applies to POST.
func (f *Fetcher) Post(ctx context.Context, url string, header http.Header, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Transient(fmt.Errorf("http post: %w", err))
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// classifyStatus maps a non-304 response status into the error taxonomy.
// 2xx returns nil.
func classifyStatus(resp *http.Response) error {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return resilience.RateLimited(fmt.Errorf("http %d", status), parseRetryAfter(resp.Header.Get("Retry-After")))
	case status >= 500:
		return resilience.Transient(fmt.Errorf("http %d", status))
	case status >= 400:
		return resilience.Permanent(fmt.Errorf("http %d", status))
	default:
		return resilience.Transient(fmt.Errorf("unexpected http %d", status))
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms. Returns 0
// when the header is absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
