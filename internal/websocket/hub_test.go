// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/models"
)

//nolint:gochecknoinits // init ensures quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// startHub runs the hub and returns a stop func that waits for it to exit.
func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	return h, func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func registerClient(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(h, nil)
	h.Register <- c
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() > 0 {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func TestHubRegisterUnregister(t *testing.T) {
	h, stop := startHub(t)
	defer stop()

	c := registerClient(t, h)
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", h.ClientCount())
	}

	h.Unregister <- c
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && h.ClientCount() != 0 {
		time.Sleep(time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", h.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHubBroadcastEvents(t *testing.T) {
	h, stop := startHub(t)
	defer stop()

	c1 := registerClient(t, h)
	c2 := registerClient(t, h)
	for h.ClientCount() < 2 {
		time.Sleep(time.Millisecond)
	}

	batch := []models.Event{{ID: "a", Source: "gdelt"}}
	h.BroadcastEvents(batch)

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != MessageTypeEvents {
				t.Errorf("message type = %q, want %q", msg.Type, MessageTypeEvents)
			}
			events, ok := msg.Data.([]models.Event)
			if !ok || len(events) != 1 || events[0].ID != "a" {
				t.Errorf("message data = %+v, want the batch", msg.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("client never received broadcast")
		}
	}
}

func TestHubBroadcastEmptyBatchIsNoop(t *testing.T) {
	h, stop := startHub(t)
	defer stop()

	c := registerClient(t, h)
	h.BroadcastEvents(nil)

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %+v for empty batch", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h, stop := startHub(t)
	defer stop()

	registerClient(t, h)

	// Keep broadcasting without draining the client until its send buffer
	// overflows and the hub drops it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && h.ClientCount() != 0 {
		h.BroadcastEvents([]models.Event{{ID: "x"}})
		time.Sleep(time.Millisecond)
	}
	if h.ClientCount() != 0 {
		t.Fatal("slow consumer was not dropped")
	}
}

func TestHubBroadcastStatus(t *testing.T) {
	h, stop := startHub(t)
	defer stop()

	c := registerClient(t, h)
	h.BroadcastStatus("push", models.StatusOpen)

	select {
	case msg := <-c.send:
		if msg.Type != MessageTypeStatus {
			t.Fatalf("message type = %q, want %q", msg.Type, MessageTypeStatus)
		}
		data, ok := msg.Data.(StatusData)
		if !ok || data.Channel != "push" || data.Status != string(models.StatusOpen) {
			t.Errorf("status data = %+v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("client never received status")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()

	c := registerClient(t, h)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown, want 0", h.ClientCount())
	}
}

func TestRebroadcasterForwardsBatches(t *testing.T) {
	b := bus.New()
	defer func() { _ = b.Close() }()

	h, stop := startHub(t)
	defer stop()
	c := registerClient(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rb := NewRebroadcaster(b, h)
	done := make(chan error, 1)
	go func() { done <- rb.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond) // let the subscription attach

	if err := b.PublishBatch([]models.Event{{ID: "live", Source: "telegram"}}); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Type != MessageTypeEvents {
			t.Fatalf("message type = %q, want %q", msg.Type, MessageTypeEvents)
		}
		events, ok := msg.Data.([]models.Event)
		if !ok || len(events) != 1 || events[0].ID != "live" {
			t.Errorf("rebroadcast data = %+v", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rebroadcast never reached the consumer")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("rebroadcaster did not stop")
	}
}
