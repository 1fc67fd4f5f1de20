// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package feed turns raw push batches into a bounded, human-scannable live
// feed. Aggregation works on arrival batches, independently of the merged
// working set: a burst that deduplicates away in the store still shows up
// here, because the feed is about arrival, not final stored state.
package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osiris-osint/osiris/internal/metrics"
	"github.com/osiris-osint/osiris/internal/models"
)

// MaxRows bounds the feed; oldest rows fall off silently.
const MaxRows = 80

// Grouping-key defaults for events with absent fields.
const (
	defaultType     = "unknown"
	defaultSeverity = models.SeverityMedium
	defaultSource   = "src"
)

// Key is the burst grouping key.
type Key struct {
	EventType string `json:"event_type"`
	Severity  string `json:"severity"`
	Source    string `json:"source"`
}

func keyFor(ev *models.Event) Key {
	k := Key{EventType: ev.EventType, Severity: ev.Severity, Source: ev.Source}
	if k.EventType == "" {
		k.EventType = defaultType
	}
	if k.Severity == "" {
		k.Severity = defaultSeverity
	}
	if k.Source == "" {
		k.Source = defaultSource
	}
	return k
}

// Row is one derived feed entry: a group of same-key arrivals from a single
// push batch. Rows are never mutated after creation.
type Row struct {
	ID        string       `json:"id"`
	Key       Key          `json:"key"`
	Count     int          `json:"count"`
	Label     string       `json:"label"`
	Sample    models.Event `json:"sample"`
	CreatedAt time.Time    `json:"created_at"`
}

// Aggregator holds the bounded, newest-first feed list.
type Aggregator struct {
	mu   sync.Mutex
	rows []Row
	max  int

	// now is injectable for tests.
	now func() time.Time
}

// NewAggregator creates an aggregator bounded at MaxRows (or max, if
// positive).
func NewAggregator(max int) *Aggregator {
	if max <= 0 {
		max = MaxRows
	}
	return &Aggregator{max: max, now: time.Now}
}

// Ingest groups one raw push batch into feed rows, prepends them to the feed
// and truncates to the bound. Returns the newly created rows in batch order.
func (a *Aggregator) Ingest(batch []models.Event) []Row {
	if len(batch) == 0 {
		return nil
	}

	type group struct {
		key    Key
		count  int
		sample models.Event
	}

	// First-appearance order of keys within the batch.
	var order []Key
	groups := make(map[Key]*group)
	for i := range batch {
		ev := batch[i]
		k := keyFor(&ev)
		g, ok := groups[k]
		if !ok {
			g = &group{key: k, sample: ev}
			groups[k] = g
			order = append(order, k)
		}
		g.count++
	}

	created := a.now().UTC()
	rows := make([]Row, 0, len(order))
	for _, k := range order {
		g := groups[k]
		rows = append(rows, Row{
			ID:        uuid.NewString(),
			Key:       g.key,
			Count:     g.count,
			Label:     label(g.key, g.count, &g.sample),
			Sample:    g.sample,
			CreatedAt: created,
		})
	}

	a.mu.Lock()
	a.rows = append(append([]Row(nil), rows...), a.rows...)
	if len(a.rows) > a.max {
		a.rows = a.rows[:a.max]
	}
	metrics.FeedRows.Set(float64(len(a.rows)))
	a.mu.Unlock()

	return rows
}

// Rows returns a copy of the current feed, newest first.
func (a *Aggregator) Rows() []Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Row(nil), a.rows...)
}

// Len returns the current feed length.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

// label renders a scannable row label: burst summaries for multi-member
// groups, the event's own title (or a generic type label) for singletons.
func label(k Key, count int, sample *models.Event) string {
	if count > 1 {
		return fmt.Sprintf("%d %s events from %s", count, k.EventType, k.Source)
	}
	if sample.Title != "" {
		return sample.Title
	}
	return fmt.Sprintf("%s event from %s", k.EventType, k.Source)
}
