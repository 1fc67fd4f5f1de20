// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline and consumer surfaces:
//   - Snapshot fetch latency, outcomes, and merge results
//   - Push channel messages, events, reconnects, and status
//   - Working-set and feed sizes
//   - Consumer API requests and websocket clients
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Snapshot fetch metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osiris_fetch_duration_seconds",
			Help:    "Duration of upstream snapshot fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osiris_fetch_total",
			Help: "Total snapshot fetch attempts by outcome",
		},
		[]string{"outcome"}, // "success", "error", "breaker_open"
	)

	// Merge metrics
	EventsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_events_merged_total",
			Help: "Total events accepted into the working set",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osiris_events_rejected_total",
			Help: "Total events rejected during merge",
		},
		[]string{"reason"}, // "no_id", "truncated"
	)

	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osiris_store_events",
			Help: "Current working-set size",
		},
	)

	// Push channel metrics
	PushMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_push_messages_total",
			Help: "Total push messages decoded successfully",
		},
	)

	PushEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_push_events_total",
			Help: "Total events delivered over the push channel",
		},
	)

	PushMalformedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_push_malformed_messages_total",
			Help: "Total push messages dropped as undecodable",
		},
	)

	PushMalformedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_push_malformed_records_total",
			Help: "Total individual push records skipped as malformed",
		},
	)

	PushReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "osiris_push_reconnects_total",
			Help: "Total push channel connection losses followed by a reconnect attempt",
		},
	)

	pushStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osiris_push_status",
			Help: "Push channel status (1 for the current state, 0 otherwise)",
		},
		[]string{"status"},
	)

	// Feed metrics
	FeedRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osiris_feed_rows",
			Help: "Current number of live-feed rows",
		},
	)

	// Consumer surface metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osiris_api_requests_total",
			Help: "Total consumer API requests",
		},
		[]string{"endpoint", "status_code"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osiris_ws_clients",
			Help: "Currently connected consumer websocket clients",
		},
	)
)

var pushStatusValues = []string{"connecting", "open", "closed", "error"}

// SetPushStatus flips the push-status gauge to the given state.
func SetPushStatus(status string) {
	for _, s := range pushStatusValues {
		v := 0.0
		if s == status {
			v = 1.0
		}
		pushStatus.WithLabelValues(s).Set(v)
	}
}
