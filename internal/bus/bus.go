// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package bus is the in-process pub/sub fabric between the ingestion
// coordinator and the consumer-facing surfaces. Raw push batches are
// published once and fanned out to every subscriber (live-feed aggregation,
// websocket rebroadcast) without coupling them to the coordinator.
//
// Built on Watermill's GoChannel pub/sub; messages are JSON-encoded event
// batches.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/osiris-osint/osiris/internal/models"
)

// TopicPushBatches carries each raw push batch, in arrival order.
const TopicPushBatches = "events.push"

// Bus wraps the GoChannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates the bus. Subscribers registered after a publish do not see
// earlier messages; subscribe before starting ingestion.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			newLoggerAdapter(),
		),
	}
}

// PublishBatch publishes one raw push batch.
func (b *Bus) PublishBatch(events []models.Event) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encoding push batch: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicPushBatches, msg); err != nil {
		return fmt.Errorf("publishing push batch: %w", err)
	}
	return nil
}

// SubscribeBatches subscribes to raw push batches. The returned channel is
// closed when ctx is canceled or the bus closes.
func (b *Bus) SubscribeBatches(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicPushBatches)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", TopicPushBatches, err)
	}
	return msgs, nil
}

// DecodeBatchMessage decodes a bus message back into an event batch.
func DecodeBatchMessage(msg *message.Message) ([]models.Event, error) {
	var events []models.Event
	if err := json.Unmarshal(msg.Payload, &events); err != nil {
		return nil, fmt.Errorf("decoding push batch message %s: %w", msg.UUID, err)
	}
	return events, nil
}

// Close shuts the pub/sub down, closing all subscriber channels. Idempotent.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
