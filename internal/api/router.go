// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package api exposes the collaborator HTTP surface: health, Prometheus
// metrics, run introspection, catalog stats, and the notifier boundary
// (listing unnotified releases and acknowledging delivery). It is read-only
// apart from the notified flag; ingestion is never triggered over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayatori/shinchaku/internal/config"
)

// NewRouter builds the chi handler tree.
func NewRouter(handler *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health and metrics stay outside the rate limit so monitoring cannot
	// starve itself.
	r.Get("/healthz", handler.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}
		r.Get("/stats", handler.Stats)
		r.Get("/runs/latest", handler.LatestRun)
		r.Get("/runs", handler.RunHistory)
		r.Get("/releases/unnotified", handler.Unnotified)
		r.Post("/releases/{id}/notified", handler.MarkNotified)
	})

	return r
}

// NewServer builds the http.Server the supervisor runs.
func NewServer(handler http.Handler, cfg config.ServerConfig) *http.Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}
}
