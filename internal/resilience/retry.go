// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
)

// maxRetryDelay caps the exponential growth so late attempts for sources with
// large base delays stay within the per-source deadline.
const maxRetryDelay = 30 * time.Second

// RetryPolicy retries a fallible operation up to maxAttempts total tries,
// waiting baseDelay*2^(attempt-1) with jitter between tries. Non-retryable
// failures surface immediately; rate-limited failures wait at least the
// server's hint when one was sent.
type RetryPolicy struct {
	source      string
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryPolicy builds a policy for one source. maxAttempts counts the first
// try; values below 1 are clamped to 1 (no retries).
func NewRetryPolicy(source string, maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{source: source, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

// Run invokes op until it succeeds, fails non-retryably, exhausts the attempt
// budget, or ctx is done. The error returned after exhaustion is the last
// error from op, tagged with the attempt count.
func (p *RetryPolicy) Run(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.baseDelay
	bo.RandomizationFactor = 0.1
	bo.Multiplier = 2
	bo.MaxInterval = maxRetryDelay
	bo.MaxElapsedTime = 0 // attempt count, not elapsed time, bounds the loop
	bo.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !IsRetryable(err) || attempt >= p.maxAttempts {
			return tagAttempts(err, attempt)
		}

		delay := bo.NextBackOff()
		if hint, ok := RetryAfterHint(err); ok && hint > delay {
			delay = hint
		}

		metrics.RetryAttempts.WithLabelValues(p.source).Inc()
		logging.Debug().
			Str("source", p.source).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying after failure")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// tagAttempts records how many tries were spent on err before giving up.
func tagAttempts(err error, attempts int) error {
	var se *SourceError
	if errors.As(err, &se) {
		se.Attempts = attempts
		return err
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
