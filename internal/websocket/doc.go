// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

/*
Package websocket pushes live updates to map consumers.

It rebroadcasts ingested event batches and upstream channel status changes to
connected frontends over gorilla/websocket, using a hub-client architecture.

Key Components:

  - Hub: central broker that manages consumer connections and broadcasts
  - Client: one consumer connection with read/write goroutines
  - Rebroadcaster: bus subscriber that feeds ingested push batches to the hub

Architecture:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all consumers
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: reads from the connection, handles application pings
  - writePump: writes frames, sends protocol pings

Message Types:

  - events: a batch of ingested events, forwarded as received
  - status: upstream push-channel state transition
  - feed: updated burst-feed rows
  - ping/pong: application-level liveness

Consumers are read-mostly: the only inbound frame handled is ping. A consumer
that cannot keep up with the broadcast rate is dropped rather than allowed to
stall the hub.
*/
package websocket
