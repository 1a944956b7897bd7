// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 5 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  float64           `json:"uptime_seconds"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthLive handles liveness probe requests.
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:  "alive",
		Version: h.cfg.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests.
// Returns 503 when any dependency check fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	results, healthy := h.runChecks(r.Context())

	status := HealthStatus{
		Status:  "ready",
		Version: h.cfg.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
		Checks:  results,
	}
	code := http.StatusOK
	if !healthy {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	NewResponseWriter(w, r).SuccessWithMeta(code, status, nil)
}

func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	healthy := true

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range h.checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			result := "ok"
			if err := c.Check(cctx); err != nil {
				result = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[c.Name] = result
			if result != "ok" {
				healthy = false
			}
		}(c)
	}
	wg.Wait()
	return results, healthy
}
