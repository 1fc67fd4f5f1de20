// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package store implements the bounded, deduplicated, ordered working set of
// events and the merge algorithm that maintains it.
//
// The store is copy-on-write: Merge is a pure function producing a fresh
// slice, and Apply atomically swaps the store's contents under a single lock.
// Snapshots handed to readers are never mutated afterwards, so readers may
// hold them across filter passes without copying.
package store

import (
	"sync"

	"github.com/osiris-osint/osiris/internal/models"
)

// DefaultCapacity is the retention bound of the working set.
const DefaultCapacity = 10000

// MergeStats describes what a merge did, for health metrics and logging.
type MergeStats struct {
	// Merged is the size of the resulting sequence.
	Merged int
	// Added counts incoming entries accepted into the result.
	Added int
	// SkippedNoID counts entries rejected for lacking a stable id.
	SkippedNoID int
	// Refreshed counts existing entries superseded by an incoming copy.
	Refreshed int
	// Truncated counts entries discarded past the capacity bound.
	Truncated int
}

// Merge combines the existing working set (newest-known-first) with an
// incoming batch (arrival order) under dedup and capacity rules.
//
// The two sequences are scanned as if concatenated incoming-then-existing,
// keeping the first occurrence of each id. An id present in both sequences
// therefore keeps the incoming copy — incoming data wins on conflict — and
// takes the incoming position. Entries without an id are skipped. The scan
// stops once the result reaches capacity; later entries are discarded.
//
// Merge is deterministic and has no side effects; it never mutates either
// input slice.
func Merge(existing, incoming []models.Event, capacity int) ([]models.Event, MergeStats) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	want := len(existing) + len(incoming)
	if want > capacity {
		want = capacity
	}

	merged := make([]models.Event, 0, want)
	seen := make(map[string]struct{}, want)
	var stats MergeStats

	scan := func(batch []models.Event, isExisting bool) {
		for i := range batch {
			ev := batch[i]
			if !ev.HasID() {
				stats.SkippedNoID++
				continue
			}
			if _, dup := seen[ev.ID]; dup {
				if isExisting {
					stats.Refreshed++
				}
				continue
			}
			if len(merged) >= capacity {
				stats.Truncated++
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
			if !isExisting {
				stats.Added++
			}
		}
	}

	scan(incoming, false)
	scan(existing, true)

	stats.Merged = len(merged)
	return merged, stats
}

// Store is the shared working set. The only permitted mutation is Apply,
// which replaces the whole set with the result of a merge; concurrent Apply
// calls are serialized so two merges never race on the same old snapshot.
type Store struct {
	mu       sync.RWMutex
	events   []models.Event
	capacity int
}

// New creates an empty store with the given capacity (DefaultCapacity if
// non-positive).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Capacity returns the retention bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Len returns the current working-set size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Snapshot returns the current working set, newest-merged-first. The returned
// slice is immutable by contract: merges build new slices rather than editing
// old ones, so the snapshot stays valid while later merges land.
func (s *Store) Snapshot() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// Apply merges an incoming batch into the store as one atomic replacement and
// returns the merge stats.
func (s *Store) Apply(incoming []models.Event) MergeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, stats := Merge(s.events, incoming, s.capacity)
	s.events = merged
	return stats
}
