// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package api

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osiris-osint/osiris/internal/logging"
)

// UpstreamProxy forwards search and relationship lookups to the upstream
// aggregator verbatim. These endpoints are opaque: responses pass through
// untouched, failures surface to the caller, and core state is never
// involved.
type UpstreamProxy struct {
	base   string
	client *http.Client
}

// NewUpstreamProxy creates a proxy against the upstream base URL
// (scheme://host).
func NewUpstreamProxy(base string, timeout time.Duration) *UpstreamProxy {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &UpstreamProxy{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// Search proxies GET /api/search with the caller's query string.
func (p *UpstreamProxy) Search(w http.ResponseWriter, r *http.Request) {
	p.forward(w, r, "/api/search", r.URL.RawQuery)
}

// Relationships proxies GET /api/relationships/{id}.
func (p *UpstreamProxy) Relationships(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "missing event id")
		return
	}
	p.forward(w, r, "/api/relationships/"+url.PathEscape(id), "")
}

func (p *UpstreamProxy) forward(w http.ResponseWriter, r *http.Request, path, rawQuery string) {
	target := p.base + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, CodeUpstream, "upstream request build failed")
		return
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("upstream proxy request failed")
		writeError(w, r, http.StatusBadGateway, CodeUpstream, "upstream unreachable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("upstream proxy copy failed")
	}
}
