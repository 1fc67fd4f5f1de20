// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package feed

import (
	"context"

	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/logging"
)

// Service consumes push batches from the bus and folds them into the
// aggregator. Runs as a supervised service; returns when ctx is canceled or
// the bus closes.
type Service struct {
	bus *bus.Bus
	agg *Aggregator
}

// NewService wires the aggregator to the bus.
func NewService(b *bus.Bus, agg *Aggregator) *Service {
	return &Service{bus: b, agg: agg}
}

// Aggregator exposes the underlying aggregator for read-side handlers.
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

// Serve subscribes to push batches and ingests each one. Undecodable
// messages are acked and dropped; the feed only ever reflects batches that
// already passed ingestion.
func (s *Service) Serve(ctx context.Context) error {
	msgs, err := s.bus.SubscribeBatches(ctx)
	if err != nil {
		return err
	}

	logging.Debug().Msg("feed service subscribed to push batches")

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
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable feed message")
				msg.Ack()
				continue
			}
			s.agg.Ingest(events)
			msg.Ack()
		}
	}
}
