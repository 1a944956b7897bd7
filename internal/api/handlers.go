// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/validation"
)

// HealthCheck is one readiness dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandlerConfig holds the Handler's settings.
type HandlerConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	Version         string
}

// Handler serves the read-only admin views and health probes.
//
// Handler methods are split across files:
//   - handlers.go: record browse endpoints
//   - handlers_health.go: liveness and readiness probes
//   - demo.go: the sample application routes wrapped by the audit middleware
type Handler struct {
	querier   audit.Querier
	checks    []HealthCheck
	cfg       HandlerConfig
	startTime time.Time
}

// NewHandler creates a Handler. querier may be nil when the configured
// store does not support browsing; the browse endpoints then answer 503.
func NewHandler(querier audit.Querier, cfg HandlerConfig, checks ...HealthCheck) *Handler {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{querier: querier, checks: checks, cfg: cfg, startTime: time.Now()}
}

// recordFilter parses and validates the browse query parameters, writing
// the error response itself when they are invalid.
func (h *Handler) recordFilter(w http.ResponseWriter, r *http.Request) (audit.RecordFilter, bool) {
	rw := NewResponseWriter(w, r)
	if h.querier == nil {
		rw.ServiceUnavailable("The configured store does not support browsing")
		return audit.RecordFilter{}, false
	}

	req, err := parseRecordsRequest(r.URL.Query(), h.cfg.DefaultPageSize)
	if err != nil {
		rw.BadRequest(err.Error())
		return audit.RecordFilter{}, false
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Code, apiErr.Message, apiErr.Details)
		return audit.RecordFilter{}, false
	}
	filter, err := req.Filter(h.cfg.MaxPageSize)
	if err != nil {
		rw.BadRequest(err.Error())
		return audit.RecordFilter{}, false
	}
	return filter, true
}

// listPage runs the page query and the total count concurrently.
func listPage[T any](ctx context.Context, q audit.Querier, logType audit.LogType, filter audit.RecordFilter, query func(context.Context, audit.RecordFilter) ([]T, error)) ([]T, int64, error) {
	var (
		records []T
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = query(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = q.Count(gctx, logType, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []T{}
	}
	return records, total, nil
}

func pagination(filter audit.RecordFilter, count int, total int64) *PaginationMeta {
	return &PaginationMeta{
		Total:   total,
		Count:   count,
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: int64(filter.Offset+count) < total,
	}
}

// ListRequests handles GET /api/v1/logs/requests.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.recordFilter(w, r)
	if !ok {
		return
	}
	records, total, err := listPage(r.Context(), h.querier, audit.LogTypeRequest, filter, h.querier.QueryRequests)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(records, pagination(filter, len(records), total))
}

// ListAccess handles GET /api/v1/logs/access.
func (h *Handler) ListAccess(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.recordFilter(w, r)
	if !ok {
		return
	}
	records, total, err := listPage(r.Context(), h.querier, audit.LogTypeAccess, filter, h.querier.QueryAccess)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(records, pagination(filter, len(records), total))
}

// GetRequest handles GET /api/v1/logs/requests/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.querier == nil {
		rw.ServiceUnavailable("The configured store does not support browsing")
		return
	}

	req := RecordIDRequest{ID: chi.URLParam(r, "id")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	rec, err := h.querier.GetRequest(r.Context(), req.ID)
	switch {
	case errors.Is(err, audit.ErrNotFound):
		rw.NotFound("Request record not found")
	case err != nil:
		rw.DatabaseError(err)
	default:
		rw.Success(rec)
	}
}
