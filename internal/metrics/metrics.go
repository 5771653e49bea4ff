// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package metrics registers the Prometheus collectors for ingestion runs,
// per-source fetch outcomes, resilience state, and storage queries. All
// collectors are registered via promauto at package load and exposed on
// /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source collection metrics

	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of upstream fetch attempts by outcome",
		},
		[]string{"source", "outcome"}, // "success", "not_modified", "transient", "rate_limited", "permanent", "parse", "breaker_open"
	)

	ItemsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_collected_total",
			Help: "Total number of raw items yielded by collectors",
		},
		[]string{"source"},
	)

	ItemsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_deduplicated_total",
			Help: "Total number of items discarded as duplicates",
		},
		[]string{"layer"}, // "exact", "fuzzy", "storage"
	)

	// Resilience metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts beyond the first try",
		},
		[]string{"source"},
	)

	RateLimitWaits = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate limiter slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// Storage metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Run metrics

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "run_duration_seconds",
			Help:    "Duration of full ingestion runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	RunLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "run_last_success_timestamp",
			Help: "Unix timestamp of the last completed (non-aborted) run",
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runs_total",
			Help: "Total number of ingestion runs by outcome",
		},
		[]string{"outcome"}, // "completed", "aborted"
	)
)
