// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogType selects which record lifecycle an operation applies to.
type LogType string

const (
	// LogTypeRequest selects application request records.
	LogTypeRequest LogType = "request"
	// LogTypeAccess selects server access records.
	LogTypeAccess LogType = "access"
	// LogTypeAll selects both. Only the retention sweeper accepts it.
	LogTypeAll LogType = "all"
)

// ParseLogType parses "request", "access" or "all".
func ParseLogType(s string) (LogType, error) {
	switch LogType(strings.ToLower(strings.TrimSpace(s))) {
	case LogTypeRequest:
		return LogTypeRequest, nil
	case LogTypeAccess:
		return LogTypeAccess, nil
	case LogTypeAll, "":
		return LogTypeAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLogType, s)
	}
}

// Types expands LogTypeAll into its members.
func (t LogType) Types() []LogType {
	if t == LogTypeAll {
		return []LogType{LogTypeRequest, LogTypeAccess}
	}
	return []LogType{t}
}

// RequestRecord is one application request/response. Header, query and body
// content is already masked when a RequestRecord is constructed.
type RequestRecord struct {
	// ID is a UUID assigned at extraction time.
	ID string `json:"id"`

	// Timestamp is when the request entered the middleware (UTC).
	Timestamp time.Time `json:"timestamp"`

	Method      string         `json:"method"`
	Path        string         `json:"path"`
	QueryString string         `json:"query_string,omitempty"`
	QueryParams map[string]any `json:"query_params,omitempty"`
	ContentType string         `json:"content_type,omitempty"`

	RequestHeaders       map[string]string `json:"request_headers,omitempty"`
	RequestBody          *string           `json:"request_body"`
	RequestBodyTruncated bool              `json:"request_body_truncated"`

	StatusCode            int               `json:"status_code"`
	ResponseHeaders       map[string]string `json:"response_headers,omitempty"`
	ResponseBody          *string           `json:"response_body"`
	ResponseBodyTruncated bool              `json:"response_body_truncated"`

	// Duration is the wall-clock time spent in the wrapped handler.
	Duration time.Duration `json:"duration_ns"`

	// UserID is nil when no identity could be resolved.
	UserID    *string `json:"user_id"`
	ClientIP  string  `json:"client_ip,omitempty"`
	UserAgent string  `json:"user_agent,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	RequestID string  `json:"request_id,omitempty"`

	// Extra holds caller-supplied fields. Never nil after extraction.
	Extra map[string]any `json:"extra_data"`
}

// ResponseTimeMS returns the duration in whole milliseconds.
func (r *RequestRecord) ResponseTimeMS() int64 {
	return r.Duration.Milliseconds()
}

// AccessRecord is one server-level request completion.
type AccessRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// WorkerPID is the process that served the request.
	WorkerPID  int    `json:"worker_pid"`
	ServerAddr string `json:"server_addr,omitempty"`
	RemoteAddr string `json:"remote_addr"`

	RequestLine string `json:"request_line"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	Protocol    string `json:"protocol"`

	StatusCode   int    `json:"status_code"`
	ResponseSize int64  `json:"response_size"`
	Referer      string `json:"referer,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`

	Duration time.Duration `json:"duration_ns"`

	UserID *string        `json:"user_id"`
	Extra  map[string]any `json:"extra_data"`
}

// NewID returns a new record ID.
func NewID() string {
	return uuid.New().String()
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
