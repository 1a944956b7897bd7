// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/reqaudit/internal/middleware"
)

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	// Middleware configures CORS and rate limiting. nil uses defaults.
	Middleware *ChiMiddlewareConfig
	// Audit wraps every route. The extractor's exclusions decide which
	// requests are recorded. nil serves everything unaudited.
	Audit func(http.Handler) http.Handler
}

// NewRouter builds the chi router.
//
// Routes:
//   - /api/v1/health/*: liveness and readiness probes
//   - /api/v1/logs/*: read-only record views
//   - /metrics: Prometheus exposition
//   - /app/*: demo application
//
// The audit interceptor runs inside RequestID and RealIP so records carry
// the request id and client address, and outside Recoverer so a panicking
// handler is recorded as a 500.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mw := NewChiMiddleware(cfg.Middleware)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Audit != nil {
		r.Use(cfg.Audit)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.HTTPMetrics)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Use(mw.RateLimitHealth())
			r.Get("/", h.HealthLive)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(middleware.Gzip)
			r.Get("/requests", h.ListRequests)
			r.Get("/requests/{id}", h.GetRequest)
			r.Get("/access", h.ListAccess)
		})
	})

	r.Mount("/app", DemoRoutes())

	return r
}
