// Osiris - Global OSINT Event Reconciliation and Live Map Feed
// Copyright 2026 The Osiris Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osiris-osint/osiris

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osiris-osint/osiris/internal/middleware"
)

// RouterConfig holds the consumer surface's middleware tunables.
type RouterConfig struct {
	// CORSAllowedOrigins is empty by default, requiring explicit
	// configuration rather than shipping a wildcard.
	CORSAllowedOrigins []string

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultRouterConfig returns secure defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// NewRouter builds the chi handler for the whole consumer surface.
func NewRouter(cfg RouterConfig, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	// Ops endpoints: no rate limit, no request counting.
	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Websocket upgrade sits outside the rate limiter: one long-lived
	// connection, not a request stream.
	r.Get("/ws", h.WebSocket)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)

		r.Get("/events", h.Events)
		r.Get("/feed", h.Feed)
		r.Get("/stats", h.Stats)
		r.Get("/feeds", h.Feeds)
		r.Post("/feeds/refresh", h.RefreshFeeds)

		r.Route("/filters", func(r chi.Router) {
			r.Get("/", h.Filters)
			r.Post("/type/toggle", h.ToggleType)
			r.Put("/sources", h.SetSources)
			r.Put("/window", h.SetWindow)
			r.Post("/pause", h.Pause)
			r.Post("/resume", h.Resume)
			r.Put("/cursor", h.SeekCursor)
		})

		// Opaque upstream proxies; each independently fallible.
		r.Get("/search", h.proxy.Search)
		r.Get("/relationships/{id}", h.proxy.Relationships)
	})

	return r
}
