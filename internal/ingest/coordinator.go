// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package ingest orchestrates both ingestion paths into the working set: the
// periodic snapshot fetch and the push channel. It owns the source registry
// and the snapshot-side health record, and forwards every raw push batch to
// the bus for the consumer surfaces.
//
// Both paths interleave safely because the only store mutation either of them
// performs is an atomic whole-batch merge (store.Apply); the store serializes
// concurrent merges internally.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/conn"
	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/metrics"
	"github.com/osiris-osint/osiris/internal/models"
	"github.com/osiris-osint/osiris/internal/store"
)

// Defaults for the snapshot path.
const (
	DefaultFetchInterval = 5 * time.Minute
	DefaultFetchTimeout  = 30 * time.Second
	DefaultSnapshotLimit = 5000
)

// Config holds the coordinator's tunables.
type Config struct {
	// FetchInterval is the snapshot cadence. Default: 5 minutes.
	FetchInterval time.Duration

	// FetchTimeout bounds a single snapshot fetch so a hung upstream never
	// blocks the next scheduled fetch. Default: 30 seconds.
	FetchTimeout time.Duration

	// SnapshotLimit is the result-size bound requested from upstream.
	// Default: 5000.
	SnapshotLimit int

	// BreakerThreshold is the consecutive-failure count that trips the fetch
	// circuit breaker. Default: 5.
	BreakerThreshold uint32
}

func (c Config) withDefaults() Config {
	if c.FetchInterval <= 0 {
		c.FetchInterval = DefaultFetchInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.SnapshotLimit <= 0 {
		c.SnapshotLimit = DefaultSnapshotLimit
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 5
	}
	return c
}

// Coordinator drives both ingestion paths into the store.
type Coordinator struct {
	cfg      Config
	fetcher  Fetcher
	store    *store.Store
	registry *Registry
	manager  *conn.Manager
	bus      *bus.Bus
	breaker  *gobreaker.CircuitBreaker[[]models.Event]

	healthMu    sync.Mutex
	fetchHealth models.ChannelHealth

	refresh chan struct{}
}

// New creates a coordinator. The manager's batches are consumed once Serve
// runs; nothing is fetched before that.
func New(cfg Config, fetcher Fetcher, st *store.Store, registry *Registry, manager *conn.Manager, b *bus.Bus) *Coordinator {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:    "snapshot-fetch",
		Timeout: cfg.FetchInterval / 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	}

	return &Coordinator{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    st,
		registry: registry,
		manager:  manager,
		bus:      b,
		breaker:  gobreaker.NewCircuitBreaker[[]models.Event](settings),
		refresh:  make(chan struct{}, 1),
		fetchHealth: models.ChannelHealth{
			Channel: "snapshot",
			Status:  models.StatusConnecting,
		},
	}
}

// Serve runs the coordinator under supervision: subscribes to push batches,
// opens the push channel, fetches once at startup and then on the fixed
// interval, until ctx is canceled. Teardown reverses startup: stop the
// ticker, disconnect the push channel, drop the subscription. All teardown
// steps are idempotent.
func (c *Coordinator) Serve(ctx context.Context) error {
	sub := c.manager.SubscribeBatches(c.handlePush)
	defer c.manager.Unsubscribe(sub)

	go c.manager.Connect(ctx)
	defer c.manager.Disconnect()

	go c.runFetch(ctx)

	ticker := time.NewTicker(c.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Each fetch runs in its own bounded goroutine: a hung fetch
			// must not block the next tick or any push-driven merge.
			go c.runFetch(ctx)
		case <-c.refresh:
			go c.runFetch(ctx)
		}
	}
}

// RefreshNow schedules an immediate snapshot fetch. Coalesces with any
// already-pending refresh.
func (c *Coordinator) RefreshNow() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// FetchHealth returns a copy of the snapshot-side health record.
func (c *Coordinator) FetchHealth() models.ChannelHealth {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.fetchHealth
}

// PushHealth returns a copy of the push-side health record.
func (c *Coordinator) PushHealth() models.ChannelHealth {
	return c.manager.Health()
}

// runFetch performs one snapshot fetch and, on success, merges the result as
// a single atomic batch. On failure the store is left untouched; only the
// health record and metrics change.
func (c *Coordinator) runFetch(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	events, err := c.breaker.Execute(func() ([]models.Event, error) {
		return c.fetcher.FetchSnapshot(fctx, c.cfg.SnapshotLimit)
	})
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
		metrics.FetchTotal.WithLabelValues(outcome).Inc()
		c.recordFetchError(err)
		logging.Warn().Err(err).Str("outcome", outcome).Msg("snapshot fetch failed, store untouched")
		return
	}

	stats := c.store.Apply(events)
	c.registry.Observe(events, time.Now().UTC())
	c.recordFetchSuccess(len(events))
	c.recordMergeMetrics(stats)
	metrics.FetchTotal.WithLabelValues("success").Inc()

	logging.Info().
		Int("fetched", len(events)).
		Int("added", stats.Added).
		Int("store_size", stats.Merged).
		Dur("took", time.Since(start)).
		Msg("snapshot merged")
}

// handlePush merges one push batch and forwards the raw batch to the bus.
// Forwarding happens regardless of merge outcome: feed aggregation is about
// arrival, not final stored state.
func (c *Coordinator) handlePush(events []models.Event) {
	stats := c.store.Apply(events)
	c.registry.Observe(events, time.Now().UTC())
	c.recordMergeMetrics(stats)

	if err := c.bus.PublishBatch(events); err != nil {
		logging.Warn().Err(err).Msg("failed to forward push batch to bus")
	}

	logging.Debug().
		Int("batch", len(events)).
		Int("added", stats.Added).
		Int("store_size", stats.Merged).
		Msg("push batch merged")
}

func (c *Coordinator) recordMergeMetrics(stats store.MergeStats) {
	metrics.EventsMerged.Add(float64(stats.Added))
	if stats.SkippedNoID > 0 {
		metrics.EventsRejected.WithLabelValues("no_id").Add(float64(stats.SkippedNoID))
	}
	if stats.Truncated > 0 {
		metrics.EventsRejected.WithLabelValues("truncated").Add(float64(stats.Truncated))
	}
	metrics.StoreSize.Set(float64(stats.Merged))
}

func (c *Coordinator) recordFetchSuccess(count int) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.fetchHealth.Status = models.StatusOpen
	c.fetchHealth.LastSuccess = time.Now().UTC()
	c.fetchHealth.Messages++
	c.fetchHealth.Events += uint64(count)
}

func (c *Coordinator) recordFetchError(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.fetchHealth.Status = models.StatusError
	c.fetchHealth.LastError = err.Error()
	c.fetchHealth.LastErrorAt = time.Now().UTC()
}
