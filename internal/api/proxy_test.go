// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProxySearchForwardsQuery(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("path = %q, want /api/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "pipeline" {
			t.Errorf("q = %q, want pipeline", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer upstream.Close()

	f := newFixture(t, upstream.URL)
	resp, err := http.Get(f.server.URL + "/api/search?q=pipeline")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != `{"results":[]}` {
		t.Errorf("body = %s, want upstream body verbatim", raw)
	}
}

func TestProxyRelationshipsForwardsID(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/relationships/ev-42" {
			t.Errorf("path = %q, want /api/relationships/ev-42", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	}))
	defer upstream.Close()

	f := newFixture(t, upstream.URL)
	resp, err := http.Get(f.server.URL + "/api/relationships/ev-42")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Upstream status passes through untouched.
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	upstream.Close() // refuse connections

	f := newFixture(t, upstream.URL)
	resp, err := http.Get(f.server.URL + "/api/search?q=x")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
