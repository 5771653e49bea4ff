// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/ayatori/shinchaku/internal/logging"
)

// Response is the wrapper every endpoint returns. Data is set on success,
// Error on failure, never both.
type Response struct {
	Success bool    `json:"success"`
	Data    any     `json:"data,omitempty"`
	Error   *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeBadRequest  = "BAD_REQUEST"
	errCodeNotFound    = "NOT_FOUND"
	errCodeInternal    = "INTERNAL_ERROR"
	errCodeUnavailable = "SERVICE_UNAVAILABLE"
)

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, Error: &apiErr{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}
