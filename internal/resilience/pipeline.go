// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package resilience

import (
	"context"
	"time"

	"github.com/ayatori/shinchaku/internal/config"
)

// Pipeline composes the per-source protections in a fixed, explicit order:
// retry outermost, then rate limiter, then breaker around the operation.
// Every retry attempt re-acquires a rate limiter slot and re-checks the
// breaker, so a retry storm cannot bypass either control. The limiter sits
// outside the breaker so a context cancellation during the wait is never
// counted as a source failure.
type Pipeline struct {
	source  string
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   *RetryPolicy
}

// NewPipeline builds the protection stack for one source from its merged
// resilience configuration.
func NewPipeline(source string, cfg config.ResilienceConfig) *Pipeline {
	return &Pipeline{
		source:  source,
		limiter: NewRateLimiter(source, cfg.RateLimit, cfg.RateWindow, cfg.BurstFraction),
		breaker: NewCircuitBreaker(source, cfg.BreakerThreshold, cfg.BreakerCooldown),
		retry:   NewRetryPolicy(source, cfg.RetryAttempts, cfg.RetryBaseDelay),
	}
}

// Do runs op under the full protection stack. Errors from op must already be
// classified (see SourceError); unclassified errors are treated as transient.
func (p *Pipeline) Do(ctx context.Context, op func(context.Context) error) error {
	return p.retry.Run(ctx, func() error {
		if err := p.limiter.Acquire(ctx); err != nil {
			return err
		}
		return p.breaker.Execute(func() error {
			return op(ctx)
		})
	})
}

// BreakerState exposes the breaker state for run summaries.
func (p *Pipeline) BreakerState() string {
	return p.breaker.State()
}

// LimiterRemaining exposes the limiter's available slots for diagnostics.
func (p *Pipeline) LimiterRemaining() int {
	return p.limiter.Remaining()
}

// Source returns the source name this pipeline protects.
func (p *Pipeline) Source() string {
	return p.source
}

// NewTestPipeline builds a pipeline with tight timings for tests: a large
// burst, no meaningful retry delay, and the given breaker parameters.
func NewTestPipeline(source string, attempts, threshold int, cooldown time.Duration) *Pipeline {
	return &Pipeline{
		source:  source,
		limiter: NewRateLimiter(source, 1000, time.Second, 1.0),
		breaker: NewCircuitBreaker(source, threshold, cooldown),
		retry:   NewRetryPolicy(source, attempts, time.Millisecond),
	}
}
