// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ayatori/shinchaku/internal/metrics"
)

// RateLimiter bounds outbound requests to one source to a fixed budget per
// window. A configurable fraction of the budget is admitted as an immediate
// burst; the remainder is smoothed across the window instead of being
// admitted all at once and then frozen.
//
// One instance per source, shared only by that source's concurrent fetch
// calls (paginated requests). Acquire is the sole gate; Remaining is
// diagnostics only.
type RateLimiter struct {
	source string
	limit  rate.Limit
	burst  int

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter admitting budget requests per window with
// an immediate burst of ceil(burstFraction*budget), clamped to [1, budget].
func NewRateLimiter(source string, budget int, window time.Duration, burstFraction float64) *RateLimiter {
	burst := int(math.Ceil(burstFraction * float64(budget)))
	if burst < 1 {
		burst = 1
	}
	if burst > budget {
		burst = budget
	}
	limit := rate.Limit(float64(budget) / window.Seconds())
	return &RateLimiter{
		source:  source,
		limit:   limit,
		burst:   burst,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Acquire blocks until a slot is available or ctx is done. It never fails for
// capacity reasons, only delays; the only error it returns is the context's.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	start := time.Now()
	err := limiter.Wait(ctx)
	metrics.RateLimitWaits.WithLabelValues(l.source).Observe(time.Since(start).Seconds())
	return err
}

// Remaining returns the slots currently available without blocking. Values
// are advisory; Acquire is the only gate.
func (l *RateLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	tokens := int(l.limiter.Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

// Reset clears accounted usage. Tests only.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = rate.NewLimiter(l.limit, l.burst)
}
