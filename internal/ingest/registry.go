// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package ingest

import (
	"sort"
	"sync"
	"time"

	"github.com/osiris-osint/osiris/internal/models"
)

// Registry is the set of all distinct source values seen so far. It grows
// monotonically as new sources appear in any fetch or push batch; sources are
// never removed. The registry is the default "all sources active" filter
// universe.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*models.SourceHealth
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*models.SourceHealth)}
}

// Observe records the sources present in a batch, updating last-seen times
// and per-source event counts.
func (r *Registry) Observe(batch []models.Event, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range batch {
		src := batch[i].Source
		if src == "" {
			continue
		}
		h, ok := r.sources[src]
		if !ok {
			h = &models.SourceHealth{Name: src, FirstSeen: now}
			r.sources[src] = h
		}
		h.LastSeen = now
		h.EventCount++
	}
}

// Sources returns all known source names, sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Health returns a copy of every source health record, sorted by name.
func (r *Registry) Health() []models.SourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SourceHealth, 0, len(r.sources))
	for _, h := range r.sources {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of distinct sources observed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
