// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
)

// RecordsRequest holds the validated query parameters of the record
// browse endpoints.
//
// Fields:
//   - PathPrefix: Request path (or access URL) prefix, must start with /
//   - MinStatus: Keep records with status >= MinStatus (100-599)
//   - UserID: Exact user id match
//   - Since, Until: RFC3339 timestamp bounds (inclusive)
//   - Limit: Page size (1-1000, clamped to the configured maximum)
//   - Offset: Records to skip
type RecordsRequest struct {
	PathPrefix string `query:"path_prefix" validate:"omitempty,max=2048,path_prefix"`
	MinStatus  int    `query:"min_status" validate:"omitempty,min=100,max=599"`
	UserID     string `query:"user_id" validate:"omitempty,max=256"`
	Since      string `query:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until      string `query:"until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit      int    `query:"limit" validate:"min=1,max=1000"`
	Offset     int    `query:"offset" validate:"min=0,max=10000000"`
}

// RecordIDRequest holds the path parameter of the record detail endpoint.
type RecordIDRequest struct {
	ID string `query:"id" validate:"required,uuid"`
}

// parseRecordsRequest reads the query string. Numeric parameters that do
// not parse are reported by name.
func parseRecordsRequest(q url.Values, defaultLimit int) (RecordsRequest, error) {
	req := RecordsRequest{
		PathPrefix: q.Get("path_prefix"),
		UserID:     q.Get("user_id"),
		Since:      q.Get("since"),
		Until:      q.Get("until"),
		Limit:      defaultLimit,
	}

	var err error
	if req.MinStatus, err = intParam(q, "min_status", 0); err != nil {
		return req, err
	}
	if req.Limit, err = intParam(q, "limit", defaultLimit); err != nil {
		return req, err
	}
	if req.Offset, err = intParam(q, "offset", 0); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// Filter converts a validated request into a store filter.
func (r RecordsRequest) Filter(maxLimit int) (audit.RecordFilter, error) {
	f := audit.RecordFilter{
		PathPrefix: r.PathPrefix,
		MinStatus:  r.MinStatus,
		UserID:     r.UserID,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
	if maxLimit > 0 && f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if r.Since != "" {
		t, err := time.Parse(time.RFC3339, r.Since)
		if err != nil {
			return f, fmt.Errorf("since: %w", err)
		}
		f.Since = &t
	}
	if r.Until != "" {
		t, err := time.Parse(time.RFC3339, r.Until)
		if err != nil {
			return f, fmt.Errorf("until: %w", err)
		}
		f.Until = &t
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return f, fmt.Errorf("until must not be before since")
	}
	return f, nil
}
