// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package websocket

import (
	"context"

	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/logging"
)

// Rebroadcaster consumes ingested push batches from the bus and forwards them
// to the hub, so map consumers see pushed events with no polling delay.
// Batches arrive here only after ingestion has merged them; the rebroadcast
// carries the batch as received.
type Rebroadcaster struct {
	bus *bus.Bus
	hub *Hub
}

// NewRebroadcaster wires the hub to the bus.
func NewRebroadcaster(b *bus.Bus, hub *Hub) *Rebroadcaster {
	return &Rebroadcaster{bus: b, hub: hub}
}

// Serve subscribes to push batches and rebroadcasts each one until ctx is
// canceled or the bus closes. Undecodable messages are acked and dropped.
func (r *Rebroadcaster) Serve(ctx context.Context) error {
	msgs, err := r.bus.SubscribeBatches(ctx)
	if err != nil {
		return err
	}

	logging.Debug().Msg("rebroadcaster subscribed to push batches")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			events, err := bus.DecodeBatchMessage(msg)
			if err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable rebroadcast message")
				msg.Ack()
				continue
			}
			r.hub.BroadcastEvents(events)
			msg.Ack()
		}
	}
}
