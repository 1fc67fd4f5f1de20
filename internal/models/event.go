// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package models defines the records shared across the ingestion pipeline:
// the Event working-set record and the per-channel / per-source health state.
package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Severity levels, matching the upstream aggregator's open vocabulary.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Entity is a named entity extracted from an event by the upstream backend.
// Osiris carries entities through opaquely.
type Entity struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Event is a single ingested record describing a real-world occurrence with
// optional geolocation. Events are immutable once merged into the store.
//
// Lat/Lon are pointers so that absence ("non-geo" event) is distinguishable
// from coordinates at the origin.
type Event struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	EventType   string         `json:"event_type"`
	Severity    string         `json:"severity,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Lat         *float64       `json:"lat,omitempty"`
	Lon         *float64       `json:"lon,omitempty"`
	Entities    []Entity       `json:"entities,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// TimestampMS is the event time resolved to epoch milliseconds.
	// Zero means the upstream record carried no parseable timestamp; such
	// events are excluded from bounded time windows but visible under "live".
	TimestampMS int64 `json:"timestamp_ms"`
}

// HasGeo reports whether the event carries usable coordinates.
func (e *Event) HasGeo() bool {
	return e.Lat != nil && e.Lon != nil
}

// HasID reports whether the event carries a non-empty stable identifier.
// Events without one are rejected before merge.
func (e *Event) HasID() bool {
	return strings.TrimSpace(e.ID) != ""
}

// Time returns the resolved event time, or the zero time when unresolved.
func (e *Event) Time() time.Time {
	if e.TimestampMS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.TimestampMS).UTC()
}

// timestampFields lists the candidate wire fields carrying an event time, in
// resolution order. Upstream ingestors are inconsistent about which one they
// populate.
var timestampFields = []string{"timestamp", "time", "date", "published", "occurred_at"}

// wireEvent mirrors Event for decoding, with the timestamp candidates kept
// raw so resolution can try each in order.
type wireEvent struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	EventType   string         `json:"event_type"`
	Severity    string         `json:"severity"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Lat         *float64       `json:"lat"`
	Lon         *float64       `json:"lon"`
	Entities    []Entity       `json:"entities"`
	Metadata    map[string]any `json:"metadata"`

	Timestamp   json.RawMessage `json:"timestamp"`
	Time        json.RawMessage `json:"time"`
	Date        json.RawMessage `json:"date"`
	Published   json.RawMessage `json:"published"`
	OccurredAt  json.RawMessage `json:"occurred_at"`
	TimestampMS int64           `json:"timestamp_ms"`
}

// UnmarshalJSON decodes an Event from its wire form, resolving the first
// parseable timestamp candidate to epoch milliseconds (zero if none parse).
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	e.ID = w.ID
	e.Source = w.Source
	e.EventType = w.EventType
	e.Severity = w.Severity
	e.Title = w.Title
	e.Description = w.Description
	e.URL = w.URL
	e.Lat = w.Lat
	e.Lon = w.Lon
	e.Entities = w.Entities
	e.Metadata = w.Metadata

	// A pre-resolved timestamp_ms (e.g. Osiris re-ingesting its own output)
	// wins over the raw candidates.
	if w.TimestampMS != 0 {
		e.TimestampMS = w.TimestampMS
		return nil
	}

	for _, raw := range []json.RawMessage{w.Timestamp, w.Time, w.Date, w.Published, w.OccurredAt} {
		if ms := resolveTimestamp(raw); ms != 0 {
			e.TimestampMS = ms
			return nil
		}
	}
	e.TimestampMS = 0
	return nil
}

// resolveTimestamp parses a raw timestamp candidate into epoch milliseconds.
// Accepted forms: RFC 3339 strings, epoch seconds, epoch milliseconds
// (numeric or numeric-string). Returns 0 when the candidate does not parse.
func resolveTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UnixMilli()
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t.UnixMilli()
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t.UnixMilli()
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return numericMillis(n)
		}
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return numericMillis(n)
	}
	return 0
}

// numericMillis interprets a numeric timestamp as epoch seconds or epoch
// milliseconds. Anything above 1e11 can only be milliseconds (1e11 seconds is
// year 5138).
func numericMillis(n float64) int64 {
	if n <= 0 {
		return 0
	}
	if n > 1e11 {
		return int64(n)
	}
	return int64(n * 1000)
}

// DecodeBatch decodes a JSON array of event records, skipping elements that
// are not valid objects. Records missing an id are kept here and rejected by
// the merge; per-record shape errors never fail the whole batch.
func DecodeBatch(data []byte) ([]Event, int, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, err
	}

	events := make([]Event, 0, len(raws))
	malformed := 0
	for _, raw := range raws {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			malformed++
			continue
		}
		events = append(events, ev)
	}
	return events, malformed, nil
}
