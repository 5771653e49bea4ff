// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayatori/shinchaku/internal/database"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/models"
)

// Store is the read-and-notify surface the API exposes. *database.DB
// implements it.
type Store interface {
	Ping(ctx context.Context) error
	CountWorks(ctx context.Context) (int64, error)
	CountReleases(ctx context.Context) (int64, error)
	CountUnnotified(ctx context.Context) (int64, error)
	LatestRun(ctx context.Context) (*models.RunSummary, error)
	RunHistory(ctx context.Context, limit int) ([]models.RunSummary, error)
	GetUnnotified(ctx context.Context, limit int) ([]models.Release, error)
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

// Handler serves the collaborator endpoints: health, run introspection,
// catalog stats, and the notifier boundary.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Healthz reports liveness and storage reachability.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "storage unreachable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ok"})
}

// statsPayload is the /stats response body.
type statsPayload struct {
	Works      int64 `json:"works"`
	Releases   int64 `json:"releases"`
	Unnotified int64 `json:"unnotified"`
}

// Stats returns catalog and backlog counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	works, err := h.store.CountWorks(ctx)
	if err != nil {
		h.storageError(w, err)
		return
	}
	releases, err := h.store.CountReleases(ctx)
	if err != nil {
		h.storageError(w, err)
		return
	}
	unnotified, err := h.store.CountUnnotified(ctx)
	if err != nil {
		h.storageError(w, err)
		return
	}
	writeSuccess(w, statsPayload{Works: works, Releases: releases, Unnotified: unnotified})
}

// LatestRun returns the most recent ingestion run summary.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.storageError(w, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, errCodeNotFound, "no runs recorded yet")
		return
	}
	writeSuccess(w, run)
}

// RunHistory returns recent runs, newest first. ?limit= caps the page.
func (h *Handler) RunHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}
	runs, err := h.store.RunHistory(r.Context(), limit)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	writeSuccess(w, runs)
}

// Unnotified returns releases pending delivery, oldest first.
func (h *Handler) Unnotified(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 100)
	if !ok {
		return
	}
	releases, err := h.store.GetUnnotified(r.Context(), limit)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if releases == nil {
		releases = []models.Release{}
	}
	writeSuccess(w, releases)
}

// MarkNotified flips a release's delivery flag.
func (h *Handler) MarkNotified(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid release id")
		return
	}
	if err := h.store.MarkNotified(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrReleaseNotFound) {
			writeError(w, http.StatusNotFound, errCodeNotFound, "release not found")
			return
		}
		h.storageError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"id": id.String(), "status": "notified"})
}

func (h *Handler) storageError(w http.ResponseWriter, err error) {
	logging.Error().Err(err).Msg("storage error serving API request")
	if database.IsUnavailable(err) {
		writeError(w, http.StatusServiceUnavailable, errCodeUnavailable, "storage unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, errCodeInternal, "internal error")
}

// parseLimit reads ?limit=, rejecting non-numeric or negative values. The
// second return is false when a 400 was already written.
func parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit, true
}
