// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

// Package main is the entry point for the Osiris server.
//
// Osiris reconciles two upstream channels from an OSINT event aggregator —
// a periodic snapshot fetch and a live websocket push — into one bounded,
// deduplicated working set, and re-serves that set to map consumers over
// HTTP and websocket.
//
// # Architecture
//
// The process runs as a suture supervisor tree with three layers:
//
//  1. ingest: the coordinator (snapshot loop, push handling, health records)
//  2. messaging: the consumer hub, the rebroadcaster, and the feed service,
//     all connected by an in-process Watermill bus
//  3. api: the chi HTTP server
//
// A crash in one layer restarts only that layer; the API keeps serving the
// last reconciled state while ingestion recovers.
//
// # Configuration
//
// Koanf v2 layered sources, highest priority wins:
//   - OSIRIS_-prefixed environment variables (OSIRIS_UPSTREAM_BASE_URL, ...)
//   - config file (config.yaml, or OSIRIS_CONFIG_PATH)
//   - built-in defaults
//
// # Signal handling
//
// SIGINT/SIGTERM triggers graceful shutdown: the fetch ticker stops, the
// push channel disconnects, listeners unsubscribe, the hub closes its
// consumers, and the HTTP server drains within the configured timeout.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osiris-osint/osiris/internal/api"
	"github.com/osiris-osint/osiris/internal/bus"
	"github.com/osiris-osint/osiris/internal/config"
	"github.com/osiris-osint/osiris/internal/conn"
	"github.com/osiris-osint/osiris/internal/feed"
	"github.com/osiris-osint/osiris/internal/ingest"
	"github.com/osiris-osint/osiris/internal/logging"
	"github.com/osiris-osint/osiris/internal/models"
	"github.com/osiris-osint/osiris/internal/store"
	"github.com/osiris-osint/osiris/internal/supervisor"
	"github.com/osiris-osint/osiris/internal/supervisor/services"
	"github.com/osiris-osint/osiris/internal/websocket"
	"github.com/osiris-osint/osiris/internal/window"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Str("push_url", cfg.Upstream.PushURL).
		Int("store_capacity", cfg.Store.Capacity).
		Msg("starting osiris")

	// Core state.
	st := store.New(cfg.Store.Capacity)
	registry := ingest.NewRegistry()
	controller := window.NewController()
	aggregator := feed.NewAggregator(cfg.Feed.MaxRows)
	b := bus.New()
	defer func() {
		if err := b.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing bus")
		}
	}()

	// Ingestion.
	manager := conn.NewManager(conn.Config{
		URL:            cfg.Upstream.PushURL,
		ReconnectDelay: cfg.Upstream.ReconnectDelay,
	})
	fetcher := ingest.NewHTTPFetcher(cfg.Upstream.BaseURL, cfg.Upstream.FetchTimeout)
	coordinator := ingest.New(ingest.Config{
		FetchInterval: cfg.Upstream.FetchInterval,
		FetchTimeout:  cfg.Upstream.FetchTimeout,
		SnapshotLimit: cfg.Upstream.SnapshotLimit,
	}, fetcher, st, registry, manager, b)

	// Consumer surface.
	hub := websocket.NewHub()
	rebroadcaster := websocket.NewRebroadcaster(b, hub)
	feedService := feed.NewService(b, aggregator)

	// Consumers see push-channel state transitions as status frames.
	manager.SubscribeStatus(func(status models.ChannelStatus) {
		hub.BroadcastStatus("push", status)
	})

	proxy := api.NewUpstreamProxy(cfg.Upstream.BaseURL, cfg.Upstream.ProxyTimeout)
	handler := api.NewHandler(st, controller, aggregator, registry, coordinator, hub, proxy)
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	}, handler)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddIngestService(coordinator)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(rebroadcaster)
	tree.AddMessagingService(feedService)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited with error")
		reportUnstopped(tree)
		os.Exit(1)
	}

	reportUnstopped(tree)
	logging.Info().Msg("osiris stopped")
}

func reportUnstopped(tree *supervisor.Tree) {
	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil || len(unstopped) == 0 {
		return
	}
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
	}
}
