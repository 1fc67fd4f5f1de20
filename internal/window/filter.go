// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package window computes the currently visible subset of the working set
// from the active filter state: type and source sets, a live/last-N time
// window, and an optional replay cursor used as "now" while paused.
package window

import (
	"time"

	"github.com/osiris-osint/osiris/internal/models"
)

// Age classes attached to visible events, derived from age relative to the
// filter's notion of "now". Advisory metadata for consumers, not a filter.
const (
	AgeNew     = "new"     // < 20s
	AgeActive  = "active"  // < 180s
	AgeCooling = "cooling" // everything older
)

const (
	ageNewCutoff    = 20 * time.Second
	ageActiveCutoff = 180 * time.Second
)

// State is one immutable filter configuration. Nil or empty type/source sets
// mean "all". Window zero selects "live" (no time bound). CursorMS is the
// replay cursor in epoch milliseconds, meaningful only while Paused.
type State struct {
	Types    map[string]struct{}
	Sources  map[string]struct{}
	Window   time.Duration
	Paused   bool
	CursorMS int64
}

// Now resolves the filter's reference time: the replay cursor while paused
// (if set), wall-clock time otherwise.
func (s State) Now(wallclock time.Time) time.Time {
	if s.Paused && s.CursorMS > 0 {
		return time.UnixMilli(s.CursorMS).UTC()
	}
	return wallclock
}

// typeActive reports whether an event type passes the active-type set.
func (s State) typeActive(eventType string) bool {
	if len(s.Types) == 0 {
		return true
	}
	_, ok := s.Types[eventType]
	return ok
}

// sourceActive reports whether a source passes the active-source set.
func (s State) sourceActive(source string) bool {
	if len(s.Sources) == 0 {
		return true
	}
	_, ok := s.Sources[source]
	return ok
}

// visible reports whether a single event passes the full filter at the given
// reference time.
func (s State) visible(ev *models.Event, now time.Time) bool {
	if !s.typeActive(ev.EventType) {
		return false
	}
	if !s.sourceActive(ev.Source) {
		return false
	}
	if s.Window <= 0 {
		return true // live: no time bound
	}
	if ev.TimestampMS == 0 {
		return false // unresolved timestamps are excluded from bounded windows
	}
	t := ev.Time()
	return !t.Before(now.Add(-s.Window)) && !t.After(now)
}

// Visible computes the currently visible subset of events, preserving input
// order. Filtering is idempotent: applying the same state to its own output
// returns an equal result.
func Visible(events []models.Event, s State, wallclock time.Time) []models.Event {
	now := s.Now(wallclock)
	out := make([]models.Event, 0, len(events))
	for i := range events {
		if s.visible(&events[i], now) {
			out = append(out, events[i])
		}
	}
	return out
}

// AgeClass classifies an event's age relative to the filter's reference time.
// Events with an unresolved timestamp classify as cooling.
func AgeClass(ev *models.Event, s State, wallclock time.Time) string {
	if ev.TimestampMS == 0 {
		return AgeCooling
	}
	age := s.Now(wallclock).Sub(ev.Time())
	switch {
	case age < ageNewCutoff:
		return AgeNew
	case age < ageActiveCutoff:
		return AgeActive
	default:
		return AgeCooling
	}
}

// Stats summarizes a visible subset for the stats HUD, including the non-geo
// diagnostic count (non-geo events are visible but excluded from geo-based
// rendering input).
func Stats(events []models.Event) models.VisibleStats {
	st := models.VisibleStats{
		Total:    len(events),
		ByType:   make(map[string]int),
		BySource: make(map[string]int),
	}
	for i := range events {
		ev := &events[i]
		st.ByType[ev.EventType]++
		st.BySource[ev.Source]++
		if !ev.HasGeo() {
			st.NonGeo++
		}
	}
	return st
}
