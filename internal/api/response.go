// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package api serves the consumer HTTP surface: the visible event set, the
// burst feed, source and channel health, filter state, upstream proxies, and
// the consumer websocket upgrade.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/middleware"
)

// APIResponse is the wrapper shared by every endpoint, so clients handle
// success and failure uniformly.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code plus a human-readable message.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta is optional response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"`
}

// Error codes used across handlers.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeUpstream    = "UPSTREAM_ERROR"
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "UNAVAILABLE"
)

// writeSuccess writes a 200 envelope. count < 0 omits the count field.
func writeSuccess(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	meta := &APIMeta{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	}
	if count >= 0 {
		meta.Count = count
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// writeError writes an error envelope with the given status.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode API response")
	}
}
