// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/feed"
	"github.com/osiris-osint/osiris/internal/ingest"
	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/models"
	"github.com/osiris-osint/osiris/internal/store"
	"github.com/osiris-osint/osiris/internal/websocket"
	"github.com/osiris-osint/osiris/internal/window"
)

// Refresher is the ingestion surface the handlers need: manual refresh plus
// channel health records.
type Refresher interface {
	RefreshNow()
	FetchHealth() models.ChannelHealth
	PushHealth() models.ChannelHealth
}

// Handler serves all consumer endpoints.
type Handler struct {
	store      *store.Store
	controller *window.Controller
	feed       *feed.Aggregator
	registry   *ingest.Registry
	refresher  Refresher
	hub        *websocket.Hub
	proxy      *UpstreamProxy
	upgrader   gws.Upgrader
}

// NewHandler wires the consumer surface to the core components.
func NewHandler(st *store.Store, ctrl *window.Controller, agg *feed.Aggregator, reg *ingest.Registry, refresher Refresher, hub *websocket.Hub, proxy *UpstreamProxy) *Handler {
	return &Handler{
		store:      st,
		controller: ctrl,
		feed:       agg,
		registry:   reg,
		refresher:  refresher,
		hub:        hub,
		proxy:      proxy,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser consumers connect cross-origin in deployments where the
			// map frontend is served separately; CORS policy is enforced at
			// the router for the REST surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// visibleEvent is an event annotated with its advisory age class.
type visibleEvent struct {
	models.Event
	AgeClass string `json:"age_class"`
}

// Events serves the currently visible subset. Query parameters override the
// shared filter state for this request only: type and source (repeatable),
// window (seconds, 0 = live), cursor_ms (implies replay against the cursor).
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	state, err := h.stateForRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	visible := window.Visible(h.store.Snapshot(), state, now)

	out := make([]visibleEvent, 0, len(visible))
	for i := range visible {
		out = append(out, visibleEvent{
			Event:    visible[i],
			AgeClass: window.AgeClass(&visible[i], state, now),
		})
	}
	writeSuccess(w, r, out, len(out))
}

// stateForRequest resolves the filter state for one read: the shared
// controller state, overridden per-request by query parameters.
func (h *Handler) stateForRequest(r *http.Request) (window.State, error) {
	state := h.controller.State()
	q := r.URL.Query()

	if types, ok := q["type"]; ok {
		state.Types = toSet(types)
	}
	if sources, ok := q["source"]; ok {
		state.Sources = toSet(sources)
	}
	if raw := q.Get("window"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			return window.State{}, errBadParam("window", raw)
		}
		state.Window = time.Duration(secs) * time.Second
	}
	if raw := q.Get("cursor_ms"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor < 0 {
			return window.State{}, errBadParam("cursor_ms", raw)
		}
		state.Paused = true
		state.CursorMS = cursor
	}
	return state, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

type paramError struct{ name, value string }

func (e paramError) Error() string {
	return "invalid " + e.name + " parameter: " + e.value
}

func errBadParam(name, value string) error {
	return paramError{name: name, value: value}
}

// Feed serves the burst-feed rows, newest first.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	rows := h.feed.Rows()
	writeSuccess(w, r, rows, len(rows))
}

// Stats serves visible-set statistics for the stats HUD.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	state, err := h.stateForRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	visible := window.Visible(h.store.Snapshot(), state, time.Now().UTC())
	writeSuccess(w, r, window.Stats(visible), -1)
}

// feedsResponse is the health overview: per-source records plus the two
// upstream channel records.
type feedsResponse struct {
	Sources  []models.SourceHealth  `json:"sources"`
	Channels []models.ChannelHealth `json:"channels"`
}

// Feeds serves per-source health plus snapshot/push channel health.
func (h *Handler) Feeds(w http.ResponseWriter, r *http.Request) {
	resp := feedsResponse{
		Sources: h.registry.Health(),
		Channels: []models.ChannelHealth{
			h.refresher.FetchHealth(),
			h.refresher.PushHealth(),
		},
	}
	writeSuccess(w, r, resp, len(resp.Sources))
}

// RefreshFeeds schedules an immediate snapshot fetch.
func (h *Handler) RefreshFeeds(w http.ResponseWriter, r *http.Request) {
	h.refresher.RefreshNow()
	writeSuccess(w, r, map[string]string{"status": "refreshing"}, -1)
}

// filterStateView is the JSON shape of the shared filter state. Empty type
// or source lists mean "all".
type filterStateView struct {
	Types         []string `json:"types"`
	Sources       []string `json:"sources"`
	WindowSeconds int      `json:"window_seconds"`
	Paused        bool     `json:"paused"`
	CursorMS      int64    `json:"cursor_ms,omitempty"`
}

func viewOf(state window.State) filterStateView {
	return filterStateView{
		Types:         sortedKeys(state.Types),
		Sources:       sortedKeys(state.Sources),
		WindowSeconds: int(state.Window / time.Second),
		Paused:        state.Paused,
		CursorMS:      state.CursorMS,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filters serves the shared filter state.
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// ToggleType applies the exclusive-select type toggle.
func (h *Handler) ToggleType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "body must be {\"type\": \"...\"}")
		return
	}
	h.controller.ToggleType(req.Type)
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// SetSources replaces the active-source set. An empty list means all sources.
func (h *Handler) SetSources(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "body must be {\"sources\": [...]}")
		return
	}
	h.controller.SetSources(req.Sources)
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// SetWindow selects the time window; zero seconds selects live.
func (h *Handler) SetWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WindowSeconds int `json:"window_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WindowSeconds < 0 {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "body must be {\"window_seconds\": n >= 0}")
		return
	}
	h.controller.SetWindow(time.Duration(req.WindowSeconds) * time.Second)
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// Pause freezes filtering at a replay cursor; a zero cursor freezes at now.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CursorMS int64 `json:"cursor_ms"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CursorMS < 0 {
			writeError(w, r, http.StatusBadRequest, CodeBadRequest, "body must be {\"cursor_ms\": n >= 0}")
			return
		}
	}
	h.controller.Pause(req.CursorMS)
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// Resume returns filtering to wall-clock time and clears the cursor.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.controller.Resume()
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// SeekCursor moves the replay cursor. Ignored unless paused.
func (h *Handler) SeekCursor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CursorMS int64 `json:"cursor_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CursorMS <= 0 {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "body must be {\"cursor_ms\": n > 0}")
		return
	}
	h.controller.SeekCursor(req.CursorMS)
	writeSuccess(w, r, viewOf(h.controller.State()), -1)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// WebSocket upgrades the connection and attaches it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
