// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/models"
)

func TestServiceIngestsPublishedBatches(t *testing.T) {
	b := bus.New()
	defer func() { _ = b.Close() }()

	agg := NewAggregator(MaxRows)
	svc := NewService(b, agg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the subscription a moment to attach before publishing.
	time.Sleep(20 * time.Millisecond)

	batch := []models.Event{
		{ID: "a", Source: "gdelt", EventType: "conflict", Severity: models.SeverityHigh},
		{ID: "b", Source: "gdelt", EventType: "conflict", Severity: models.SeverityHigh},
	}
	if err := b.PublishBatch(batch); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && agg.Len() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	rows := agg.Rows()
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Count != 2 {
		t.Errorf("row count = %d, want 2", rows[0].Count)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
