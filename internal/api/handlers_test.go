// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/feed"
	"github.com/osiris-osint/osiris/internal/ingest"
	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/models"
	"github.com/osiris-osint/osiris/internal/store"
	"github.com/osiris-osint/osiris/internal/websocket"
	"github.com/osiris-osint/osiris/internal/window"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeRefresher records refresh calls and serves canned health records.
type fakeRefresher struct {
	refreshes int
}

func (f *fakeRefresher) RefreshNow() { f.refreshes++ }

func (f *fakeRefresher) FetchHealth() models.ChannelHealth {
	return models.ChannelHealth{Channel: "snapshot", Status: models.StatusOpen}
}

func (f *fakeRefresher) PushHealth() models.ChannelHealth {
	return models.ChannelHealth{Channel: "push", Status: models.StatusOpen}
}

type fixture struct {
	store     *store.Store
	ctrl      *window.Controller
	agg       *feed.Aggregator
	registry  *ingest.Registry
	refresher *fakeRefresher
	server    *httptest.Server
}

func newFixture(t *testing.T, upstream string) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.New(100),
		ctrl:      window.NewController(),
		agg:       feed.NewAggregator(feed.MaxRows),
		registry:  ingest.NewRegistry(),
		refresher: &fakeRefresher{},
	}
	h := NewHandler(f.store, f.ctrl, f.agg, f.registry, f.refresher, websocket.NewHub(), NewUpstreamProxy(upstream, time.Second))
	f.server = httptest.NewServer(NewRouter(DefaultRouterConfig(), h))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, APIResponse) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
	return resp, body
}

func (f *fixture) send(t *testing.T, method, path, body string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp, envelope
}

func decodeData(t *testing.T, body APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(body.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatal(err)
	}
}

func TestEventsServesVisibleSet(t *testing.T) {
	f := newFixture(t, "")
	now := time.Now().UnixMilli()
	f.store.Apply([]models.Event{
		{ID: "a", Source: "gdelt", EventType: "conflict", TimestampMS: now - 5_000},
		{ID: "b", Source: "rss", EventType: "cyber", TimestampMS: now - 100_000},
	})

	_, body := f.get(t, "/api/events")
	if !body.Success {
		t.Fatalf("response not successful: %+v", body.Error)
	}

	var events []struct {
		models.Event
		AgeClass string `json:"age_class"`
	}
	decodeData(t, body, &events)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].AgeClass != window.AgeNew {
		t.Errorf("event a age = %q, want %q", events[0].AgeClass, window.AgeNew)
	}
	if events[1].AgeClass != window.AgeActive {
		t.Errorf("event b age = %q, want %q", events[1].AgeClass, window.AgeActive)
	}
	if body.Meta == nil || body.Meta.Count != 2 {
		t.Errorf("meta = %+v, want count 2", body.Meta)
	}
}

func TestEventsQueryOverrides(t *testing.T) {
	f := newFixture(t, "")
	now := time.Now().UnixMilli()
	f.store.Apply([]models.Event{
		{ID: "a", Source: "gdelt", EventType: "conflict", TimestampMS: now},
		{ID: "b", Source: "rss", EventType: "cyber", TimestampMS: now},
	})

	_, body := f.get(t, "/api/events?type=cyber")
	var events []models.Event
	decodeData(t, body, &events)
	if len(events) != 1 || events[0].ID != "b" {
		t.Fatalf("filtered events = %+v, want just b", events)
	}

	// The shared controller state is untouched by per-request overrides.
	if len(f.ctrl.State().Types) != 0 {
		t.Error("per-request override mutated shared state")
	}
}

func TestEventsRejectsBadWindow(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.get(t, "/api/events?window=soon")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != CodeBadRequest {
		t.Errorf("error = %+v, want code %s", body.Error, CodeBadRequest)
	}
}

func TestFeedServesRows(t *testing.T) {
	f := newFixture(t, "")
	f.agg.Ingest([]models.Event{
		{ID: "1", Source: "telegram", EventType: "protest", Severity: models.SeverityHigh},
		{ID: "2", Source: "telegram", EventType: "protest", Severity: models.SeverityHigh},
	})

	_, body := f.get(t, "/api/feed")
	var rows []feed.Row
	decodeData(t, body, &rows)
	if len(rows) != 1 || rows[0].Count != 2 {
		t.Fatalf("rows = %+v, want one row with count 2", rows)
	}
}

func TestStatsCountsVisible(t *testing.T) {
	f := newFixture(t, "")
	lat, lon := 10.0, 20.0
	now := time.Now().UnixMilli()
	f.store.Apply([]models.Event{
		{ID: "a", Source: "gdelt", EventType: "conflict", Lat: &lat, Lon: &lon, TimestampMS: now},
		{ID: "b", Source: "gdelt", EventType: "cyber", TimestampMS: now},
	})

	_, body := f.get(t, "/api/stats")
	var stats models.VisibleStats
	decodeData(t, body, &stats)
	if stats.Total != 2 || stats.NonGeo != 1 {
		t.Errorf("stats = %+v, want total 2 nongeo 1", stats)
	}
	if stats.BySource["gdelt"] != 2 {
		t.Errorf("BySource = %+v", stats.BySource)
	}
}

func TestFeedsServesHealth(t *testing.T) {
	f := newFixture(t, "")
	f.registry.Observe([]models.Event{{ID: "a", Source: "gdelt"}}, time.Now().UTC())

	_, body := f.get(t, "/api/feeds")
	var resp feedsResponse
	decodeData(t, body, &resp)
	if len(resp.Sources) != 1 || resp.Sources[0].Name != "gdelt" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if len(resp.Channels) != 2 {
		t.Fatalf("channels = %+v, want snapshot and push", resp.Channels)
	}
}

func TestRefreshFeeds(t *testing.T) {
	f := newFixture(t, "")
	resp, body := f.send(t, http.MethodPost, "/api/feeds/refresh", "")
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("refresh failed: %d %+v", resp.StatusCode, body.Error)
	}
	if f.refresher.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", f.refresher.refreshes)
	}
}

func TestFilterEndpoints(t *testing.T) {
	f := newFixture(t, "")

	_, body := f.send(t, http.MethodPost, "/api/filters/type/toggle", `{"type":"conflict"}`)
	var state filterStateView
	decodeData(t, body, &state)
	if len(state.Types) != 1 || state.Types[0] != "conflict" {
		t.Fatalf("types after toggle = %v, want [conflict]", state.Types)
	}

	// Toggling the sole active type resets to all.
	_, body = f.send(t, http.MethodPost, "/api/filters/type/toggle", `{"type":"conflict"}`)
	decodeData(t, body, &state)
	if len(state.Types) != 0 {
		t.Fatalf("types after second toggle = %v, want all", state.Types)
	}

	_, body = f.send(t, http.MethodPut, "/api/filters/sources", `{"sources":["gdelt","rss"]}`)
	decodeData(t, body, &state)
	if len(state.Sources) != 2 {
		t.Fatalf("sources = %v", state.Sources)
	}

	_, body = f.send(t, http.MethodPut, "/api/filters/window", `{"window_seconds":300}`)
	decodeData(t, body, &state)
	if state.WindowSeconds != 300 {
		t.Fatalf("window = %d, want 300", state.WindowSeconds)
	}

	_, body = f.send(t, http.MethodPost, "/api/filters/pause", `{"cursor_ms":123456}`)
	decodeData(t, body, &state)
	if !state.Paused || state.CursorMS != 123456 {
		t.Fatalf("pause state = %+v", state)
	}

	_, body = f.send(t, http.MethodPut, "/api/filters/cursor", `{"cursor_ms":654321}`)
	decodeData(t, body, &state)
	if state.CursorMS != 654321 {
		t.Fatalf("cursor = %d, want 654321", state.CursorMS)
	}

	_, body = f.send(t, http.MethodPost, "/api/filters/resume", "")
	decodeData(t, body, &state)
	if state.Paused || state.CursorMS != 0 {
		t.Fatalf("resume state = %+v", state)
	}
}

func TestToggleTypeRejectsEmptyBody(t *testing.T) {
	f := newFixture(t, "")
	resp, _ := f.send(t, http.MethodPost, "/api/filters/type/toggle", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")
	resp, err := http.Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsExposition(t *testing.T) {
	f := newFixture(t, "")
	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "osiris_") {
		t.Error("metrics exposition missing osiris_ series")
	}
}
