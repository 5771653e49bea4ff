// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package resilience

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"transient", Transient(errors.New("connection reset")), ClassTransient},
		{"rate limited", RateLimited(errors.New("429"), 0), ClassRateLimited},
		{"permanent", Permanent(errors.New("401 unauthorized")), ClassPermanent},
		{"parse", Parse(errors.New("unexpected token"), "<html>"), ClassParse},
		{"breaker open", breakerOpen("anilist"), ClassBreakerOpen},
		{"wrapped", fmt.Errorf("fetch page 2: %w", Permanent(errors.New("403"))), ClassPermanent},
		{"unclassified defaults to transient", errors.New("something else"), ClassTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Transient(errors.New("timeout"))) {
		t.Error("transient errors should be retryable")
	}
	if !IsRetryable(RateLimited(errors.New("429"), time.Second)) {
		t.Error("rate-limited errors should be retryable")
	}
	if IsRetryable(Permanent(errors.New("404"))) {
		t.Error("permanent errors should not be retryable")
	}
	if IsRetryable(Parse(errors.New("bad json"), "")) {
		t.Error("parse errors should not be retryable")
	}
	if IsRetryable(breakerOpen("calendar")) {
		t.Error("breaker-open errors should not be retryable")
	}
}

func TestCountsForBreaker(t *testing.T) {
	if countsForBreaker(Parse(errors.New("bad xml"), "")) {
		t.Error("parse errors should not count toward the breaker")
	}
	for _, err := range []error{
		Transient(errors.New("503")),
		RateLimited(errors.New("429"), 0),
		Permanent(errors.New("400")),
	} {
		if !countsForBreaker(err) {
			t.Errorf("%v should count toward the breaker", err)
		}
	}
}

func TestRetryAfterHint(t *testing.T) {
	hint, ok := RetryAfterHint(RateLimited(errors.New("429"), 5*time.Second))
	if !ok || hint != 5*time.Second {
		t.Errorf("expected 5s hint, got %s ok=%v", hint, ok)
	}
	if _, ok := RetryAfterHint(RateLimited(errors.New("429"), 0)); ok {
		t.Error("zero RetryAfter should report no hint")
	}
	if _, ok := RetryAfterHint(Transient(errors.New("reset"))); ok {
		t.Error("transient errors carry no hint")
	}
}

func TestSourceErrorMessageIncludesAttempts(t *testing.T) {
	err := Transient(errors.New("gateway timeout"))
	err.Attempts = 3
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error message should mention attempts: %q", err.Error())
	}
}

func TestParseTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("x", 1024)
	err := Parse(errors.New("bad payload"), long)
	if len(err.Excerpt) != 256 {
		t.Errorf("excerpt should be truncated to 256 bytes, got %d", len(err.Excerpt))
	}
}

func TestSourceErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	if !errors.Is(Transient(inner), inner) {
		t.Error("SourceError should unwrap to the inner error")
	}
}
