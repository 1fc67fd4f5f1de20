// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/metrics"
	"github.com/osiris-osint/osiris/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path
	// (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded; may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to map consumers.
const (
	MessageTypeEvents = "events"
	MessageTypeStatus = "status"
	MessageTypeFeed   = "feed"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
)

// Message is the envelope for every frame sent to a consumer.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StatusData is the payload of a status frame: the upstream push channel's
// state, so consumers can show connection health without polling.
type StatusData struct {
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of active consumers and broadcasts frames to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub under supervision until ctx is canceled, then closes
// every connected consumer and returns ctx.Err().
//
// Priority-based selection keeps behavior predictable when multiple channels
// are ready at once (Go's select picks randomly otherwise):
// shutdown, then client lifecycle, then broadcast.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle (non-blocking check).
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: block on anything.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("consumer connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("consumer disconnected")
}

// shutdown closes all consumers and logs the reason. Context cancellation is
// expected behavior, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	count := h.ClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// broadcastToClients sends a frame to every consumer in a deterministic
// order. Clients are sorted by ID so delivery order is reproducible; a
// consumer whose send buffer is full is dropped rather than allowed to stall
// the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSClients.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(toRemove)).Msg("dropped slow consumers")
	}
}

// closeAllClients closes consumers in ID order for consistent shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSClients.Set(0)
}

// BroadcastEvents rebroadcasts an event batch to all consumers. The batch is
// forwarded as received from ingestion; consumers apply their own filters.
func (h *Hub) BroadcastEvents(events []models.Event) {
	if len(events) == 0 {
		return
	}
	h.enqueue(Message{Type: MessageTypeEvents, Data: events})
}

// BroadcastStatus notifies consumers of an upstream channel status change.
func (h *Hub) BroadcastStatus(channel string, status models.ChannelStatus) {
	h.enqueue(Message{
		Type: MessageTypeStatus,
		Data: StatusData{
			Channel:   channel,
			Status:    string(status),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// BroadcastJSON sends an arbitrary typed frame to all consumers.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	h.enqueue(Message{Type: messageType, Data: data})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected consumers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a frame to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
