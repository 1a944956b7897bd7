// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidBatchSize is returned by Cleanup for batch sizes below 1.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidLogType is returned for an unknown or unsupported log type.
	ErrInvalidLogType = errors.New("invalid log type")

	// ErrNilRecord is returned when a nil record is written.
	ErrNilRecord = errors.New("record cannot be nil")

	// ErrNotFound is returned by lookups for a missing record.
	ErrNotFound = errors.New("record not found")

	// ErrSinkClosed is returned by a sink after Close.
	ErrSinkClosed = errors.New("sink is closed")
)

// Sink persists audit records and deletes them by age. Implementations must
// be safe for concurrent use by many request goroutines.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// WriteRequest persists one request record.
	WriteRequest(ctx context.Context, rec *RequestRecord) error

	// WriteAccess persists one access record.
	WriteAccess(ctx context.Context, rec *AccessRecord) error

	// Cleanup deletes records of logType older than olderThan in batches of
	// at most batchSize and returns how many were deleted. With dryRun it
	// returns how many would be deleted. logType must be LogTypeRequest or
	// LogTypeAccess. On error the count deleted so far is returned with it.
	Cleanup(ctx context.Context, logType LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error)

	// Close releases the sink's resources.
	Close() error
}

// RecordFilter selects records for the admin browse views.
type RecordFilter struct {
	// PathPrefix matches the request path (request logs) or URL (access logs).
	PathPrefix string
	// MinStatus keeps records with status code >= MinStatus.
	MinStatus int
	// UserID matches exactly.
	UserID string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// DefaultRecordFilter returns a filter for the 100 newest records.
func DefaultRecordFilter() RecordFilter {
	return RecordFilter{Limit: 100}
}

// Querier is implemented by sinks that support read-only browsing. Results
// are ordered newest first.
type Querier interface {
	QueryRequests(ctx context.Context, filter RecordFilter) ([]RequestRecord, error)
	QueryAccess(ctx context.Context, filter RecordFilter) ([]AccessRecord, error)
	GetRequest(ctx context.Context, id string) (*RequestRecord, error)
	Count(ctx context.Context, logType LogType, filter RecordFilter) (int64, error)
}

func (f RecordFilter) matches(ts time.Time, path string, status int, userID *string) bool {
	if f.PathPrefix != "" && !strings.HasPrefix(path, f.PathPrefix) {
		return false
	}
	if f.MinStatus > 0 && status < f.MinStatus {
		return false
	}
	if f.UserID != "" && (userID == nil || *userID != f.UserID) {
		return false
	}
	if f.Since != nil && ts.Before(*f.Since) {
		return false
	}
	if f.Until != nil && ts.After(*f.Until) {
		return false
	}
	return true
}

// page applies Offset and Limit to n results and returns the bounds.
func (f RecordFilter) page(n int) (start, end int) {
	start = f.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = n
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return start, end
}
