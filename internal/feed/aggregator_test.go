// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/osiris-osint/osiris/internal/models"
)

func ev(id, eventType, severity, source string) models.Event {
	return models.Event{ID: id, EventType: eventType, Severity: severity, Source: source}
}

func TestBurstGrouping(t *testing.T) {
	// Spec scenario: 5 events sharing (conflict, high, gdelt) produce exactly
	// one row with count 5.
	a := NewAggregator(0)

	batch := make([]models.Event, 5)
	for i := range batch {
		batch[i] = ev(fmt.Sprintf("e%d", i), "conflict", models.SeverityHigh, "gdelt")
	}

	rows := a.Ingest(batch)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Count != 5 {
		t.Errorf("count = %d, want 5", rows[0].Count)
	}
	if rows[0].Key != (Key{EventType: "conflict", Severity: "high", Source: "gdelt"}) {
		t.Errorf("key = %+v", rows[0].Key)
	}
	if rows[0].Label != "5 conflict events from gdelt" {
		t.Errorf("label = %q", rows[0].Label)
	}
	if rows[0].Sample.ID != "e0" {
		t.Errorf("sample should be the first group member, got %q", rows[0].Sample.ID)
	}
}

func TestSingletonLabels(t *testing.T) {
	a := NewAggregator(0)

	titled := ev("a", "earthquake", "medium", "usgs")
	titled.Title = "M6.1 - Honshu, Japan"
	untitled := ev("b", "cyber", "low", "otx")

	rows := a.Ingest([]models.Event{titled, untitled})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Label != "M6.1 - Honshu, Japan" {
		t.Errorf("titled singleton label = %q", rows[0].Label)
	}
	if rows[1].Label != "cyber event from otx" {
		t.Errorf("generic singleton label = %q", rows[1].Label)
	}
}

func TestGroupingKeyDefaults(t *testing.T) {
	a := NewAggregator(0)

	rows := a.Ingest([]models.Event{{ID: "bare"}})
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	want := Key{EventType: "unknown", Severity: "medium", Source: "src"}
	if rows[0].Key != want {
		t.Errorf("defaulted key = %+v, want %+v", rows[0].Key, want)
	}
}

func TestDistinctKeysSplitRows(t *testing.T) {
	a := NewAggregator(0)

	rows := a.Ingest([]models.Event{
		ev("1", "conflict", "high", "gdelt"),
		ev("2", "conflict", "high", "acled"), // different source
		ev("3", "conflict", "low", "gdelt"),  // different severity
		ev("4", "conflict", "high", "gdelt"), // groups with "1"
	})

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Count != 2 {
		t.Errorf("first group count = %d, want 2", rows[0].Count)
	}
}

func TestNewestFirstAndEviction(t *testing.T) {
	a := NewAggregator(3)

	a.Ingest([]models.Event{ev("1", "conflict", "high", "gdelt")})
	a.Ingest([]models.Event{ev("2", "cyber", "low", "otx")})
	a.Ingest([]models.Event{
		ev("3", "earthquake", "medium", "usgs"),
		ev("4", "wildfire", "high", "nasa_firms"),
	})

	rows := a.Rows()
	if len(rows) != 3 {
		t.Fatalf("feed length = %d, want 3 (bounded)", len(rows))
	}
	// Newest batch at the head in batch order; oldest row evicted silently.
	if rows[0].Key.EventType != "earthquake" || rows[1].Key.EventType != "wildfire" {
		t.Errorf("head rows = %s, %s", rows[0].Key.EventType, rows[1].Key.EventType)
	}
	if rows[2].Key.EventType != "cyber" {
		t.Errorf("tail row = %s, want cyber (conflict evicted)", rows[2].Key.EventType)
	}
}

func TestDefaultBound(t *testing.T) {
	a := NewAggregator(0)
	for i := 0; i < MaxRows+20; i++ {
		a.Ingest([]models.Event{ev(fmt.Sprintf("e%d", i), fmt.Sprintf("t%d", i), "low", "s")})
	}
	if a.Len() != MaxRows {
		t.Errorf("feed length = %d, want %d", a.Len(), MaxRows)
	}
}

func TestEmptyBatch(t *testing.T) {
	a := NewAggregator(0)
	if rows := a.Ingest(nil); rows != nil {
		t.Errorf("empty batch produced rows: %v", rows)
	}
	if a.Len() != 0 {
		t.Errorf("feed length = %d, want 0", a.Len())
	}
}

func TestRowTimestamps(t *testing.T) {
	a := NewAggregator(0)
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	rows := a.Ingest([]models.Event{ev("1", "conflict", "high", "gdelt")})
	if !rows[0].CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", rows[0].CreatedAt, fixed)
	}
}
