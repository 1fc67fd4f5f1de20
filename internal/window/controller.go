// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package window

import (
	"sync"
	"time"
)

// Controller owns the consumer-facing filter state. All methods are safe for
// concurrent use; State returns an independent copy so filter passes never
// observe a half-applied mutation.
type Controller struct {
	mu    sync.Mutex
	state State
}

// NewController creates a controller in the default state: all types, all
// sources, live window, not paused.
func NewController() *Controller {
	return &Controller{}
}

// State returns a copy of the current filter state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (s State) clone() State {
	out := s
	if s.Types != nil {
		out.Types = make(map[string]struct{}, len(s.Types))
		for t := range s.Types {
			out.Types[t] = struct{}{}
		}
	}
	if s.Sources != nil {
		out.Sources = make(map[string]struct{}, len(s.Sources))
		for src := range s.Sources {
			out.Sources[src] = struct{}{}
		}
	}
	return out
}

// ToggleType applies the exclusive-select policy: toggling a type when it is
// the only active type resets the active set to all types; any other toggle
// narrows the active set to exactly that type.
func (c *Controller) ToggleType(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.state.Types) == 1 {
		if _, only := c.state.Types[eventType]; only {
			c.state.Types = nil
			return
		}
	}
	c.state.Types = map[string]struct{}{eventType: {}}
}

// SetSources replaces the active-source set. An empty or nil set means all
// sources.
func (c *Controller) SetSources(sources []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(sources) == 0 {
		c.state.Sources = nil
		return
	}
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	c.state.Sources = set
}

// SetWindow selects a bounded last-N window; zero or negative selects live.
func (c *Controller) SetWindow(span time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if span < 0 {
		span = 0
	}
	c.state.Window = span
}

// Pause freezes filtering at the given replay cursor (epoch milliseconds).
// A zero cursor pauses at the current wall-clock instant.
func (c *Controller) Pause(cursorMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Paused = true
	if cursorMS <= 0 {
		cursorMS = time.Now().UnixMilli()
	}
	c.state.CursorMS = cursorMS
}

// Resume returns to live filtering. The cursor is cleared; it is meaningful
// only while paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Paused = false
	c.state.CursorMS = 0
}

// SeekCursor moves the replay cursor while paused. Ignored when not paused.
func (c *Controller) SeekCursor(cursorMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Paused || cursorMS <= 0 {
		return
	}
	c.state.CursorMS = cursorMS
}
