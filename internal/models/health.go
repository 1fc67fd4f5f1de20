// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package models

import "time"

// ChannelStatus is the lifecycle state of an ingestion channel.
type ChannelStatus string

const (
	StatusConnecting ChannelStatus = "connecting"
	StatusOpen       ChannelStatus = "open"
	StatusClosed     ChannelStatus = "closed"
	StatusError      ChannelStatus = "error"
)

// ChannelHealth is the observable health record for one ingestion channel
// (snapshot fetch or push). Mutated only by the channel's owner; exposed to
// consumers as a copy.
type ChannelHealth struct {
	Channel     string        `json:"channel"`
	Status      ChannelStatus `json:"status"`
	LastSuccess time.Time     `json:"last_success"`
	Messages    uint64        `json:"messages"`
	Events      uint64        `json:"events"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt time.Time     `json:"last_error_at"`
}

// SourceHealth tracks one distinct upstream source value observed in any
// batch: when it first appeared, when it last contributed, and how many of
// its events have been seen.
type SourceHealth struct {
	Name       string    `json:"name"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	EventCount uint64    `json:"event_count"`
}

// VisibleStats summarizes the currently visible subset for the stats HUD.
type VisibleStats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	BySource map[string]int `json:"by_source"`
	NonGeo   int            `json:"non_geo"`
}
