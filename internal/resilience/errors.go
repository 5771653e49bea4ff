// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package resilience provides the per-source protection stack: rate limiting,
// circuit breaking, and bounded retry with exponential backoff, plus the error
// classification the three layers agree on. Every upstream call goes through a
// Pipeline that composes the three in a fixed order.
package resilience

import (
	"errors"
	"fmt"
	"time"
)

// ErrorClass classifies an upstream failure. The class decides whether the
// retry layer retries and whether the breaker counts the failure. Values
// double as metric and summary label strings.
type ErrorClass string

const (
	// ClassTransient covers timeouts, connection resets, and 5xx responses.
	// Retried; counts toward the breaker.
	ClassTransient ErrorClass = "transient"

	// ClassRateLimited covers 429-equivalents. Retried, honoring the server
	// backoff hint when one is present; counts toward the breaker.
	ClassRateLimited ErrorClass = "rate_limited"

	// ClassPermanent covers non-429 4xx responses and credential failures.
	// Never retried; counts toward the breaker.
	ClassPermanent ErrorClass = "permanent"

	// ClassParse covers payloads that do not match the expected schema.
	// Never retried and does not count toward the breaker: the source is
	// reachable, its data is bad.
	ClassParse ErrorClass = "parse"

	// ClassBreakerOpen is the fast-fail produced without a network attempt
	// while a breaker is open. Never retried.
	ClassBreakerOpen ErrorClass = "breaker_open"
)

// SourceError is an upstream failure tagged with its classification. The
// collectors construct these; the retry and breaker layers only inspect the
// Class, never the underlying error.
type SourceError struct {
	Class ErrorClass
	Err   error

	// RetryAfter carries the server's backoff hint for rate_limited errors;
	// zero when the server sent none.
	RetryAfter time.Duration

	// Attempts is filled in by the retry layer when it gives up.
	Attempts int

	// Excerpt holds a bounded slice of the offending payload for parse
	// errors, for log context only.
	Excerpt string
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Class, e.Err)
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable network/5xx failure.
func Transient(err error) *SourceError {
	return &SourceError{Class: ClassTransient, Err: err}
}

// RateLimited wraps err as a 429-equivalent. retryAfter is the server's
// backoff hint, zero if none was sent.
func RateLimited(err error, retryAfter time.Duration) *SourceError {
	return &SourceError{Class: ClassRateLimited, Err: err, RetryAfter: retryAfter}
}

// Permanent wraps err as a non-retryable upstream rejection.
func Permanent(err error) *SourceError {
	return &SourceError{Class: ClassPermanent, Err: err}
}

// Parse wraps err as a schema mismatch, keeping a bounded payload excerpt for
// logging.
func Parse(err error, excerpt string) *SourceError {
	const maxExcerpt = 256
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt]
	}
	return &SourceError{Class: ClassParse, Err: err, Excerpt: excerpt}
}

func breakerOpen(source string) *SourceError {
	return &SourceError{
		Class: ClassBreakerOpen,
		Err:   fmt.Errorf("circuit breaker open for source %q", source),
	}
}

// Classify returns the error's class. Unclassified errors are treated as
// transient so an unexpected failure mode still gets the retry/breaker
// protections rather than silently bypassing them.
func Classify(err error) ErrorClass {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Class
	}
	return ClassTransient
}

// IsRetryable reports whether the retry layer should try again.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassTransient, ClassRateLimited:
		return true
	default:
		return false
	}
}

// countsForBreaker reports whether the failure indicates source
// unavailability. Parse errors do not: the source answered, the payload was
// bad.
func countsForBreaker(err error) bool {
	return Classify(err) != ClassParse
}

// RetryAfterHint returns the server-provided backoff hint, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var se *SourceError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter, true
	}
	return 0, false
}
