// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
)

// CircuitBreaker isolates a failing source. CLOSED passes calls through and
// counts consecutive failures; at threshold it opens and fails fast without a
// network call; after the cooldown a single trial call runs half-open, and
// its outcome decides between closing again and restarting the cooldown.
//
// Parse errors pass through as errors but do not count as failures: a source
// returning garbage is reachable, and hammering it with fast-fails would hide
// the real problem class from operators.
type CircuitBreaker struct {
	source string
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreaker builds a breaker for one source that opens after
// threshold consecutive counted failures and stays open for cooldown.
func NewCircuitBreaker(source string, threshold int, cooldown time.Duration) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        source,
		MaxRequests: 1, // single trial call while half-open
		Interval:    0, // never clear counts while closed; consecutive semantics
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsForBreaker(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(source).Set(stateValue(gobreaker.StateClosed))
	return &CircuitBreaker{
		source: source,
		cb:     gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Execute runs op unless the breaker is open, in which case it returns a
// breaker-open error immediately without invoking op. Errors from op pass
// through unchanged.
func (b *CircuitBreaker) Execute(op func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return breakerOpen(b.source)
	}
	return err
}

// State returns the breaker state as its lowercase wire form: "closed",
// "half-open", or "open".
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
