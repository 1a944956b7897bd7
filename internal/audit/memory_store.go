// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemorySink keeps records in process memory. Data is lost on restart.
type MemorySink struct {
	mu       sync.RWMutex
	requests []RequestRecord
	access   []AccessRecord
	closed   bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Name implements Sink.
func (s *MemorySink) Name() string { return "memory" }

// WriteRequest implements Sink.
func (s *MemorySink) WriteRequest(_ context.Context, rec *RequestRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.requests = append(s.requests, *rec)
	return nil
}

// WriteAccess implements Sink.
func (s *MemorySink) WriteAccess(_ context.Context, rec *AccessRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.access = append(s.access, *rec)
	return nil
}

// Cleanup implements Sink.
func (s *MemorySink) Cleanup(ctx context.Context, logType LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error) {
	return cleanupInBatches(ctx, s.Name(), s, logType, olderThan, batchSize, dryRun)
}

func (s *MemorySink) countOlder(_ context.Context, logType LogType, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	switch logType {
	case LogTypeRequest:
		for i := range s.requests {
			if s.requests[i].Timestamp.Before(cutoff) {
				n++
			}
		}
	case LogTypeAccess:
		for i := range s.access {
			if s.access[i].Timestamp.Before(cutoff) {
				n++
			}
		}
	}
	return n, nil
}

func (s *MemorySink) deleteOlderBatch(_ context.Context, logType LogType, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSinkClosed
	}

	switch logType {
	case LogTypeRequest:
		kept, n := deleteUpTo(s.requests, limit, func(r *RequestRecord) bool { return r.Timestamp.Before(cutoff) })
		s.requests = kept
		return n, nil
	case LogTypeAccess:
		kept, n := deleteUpTo(s.access, limit, func(r *AccessRecord) bool { return r.Timestamp.Before(cutoff) })
		s.access = kept
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLogType, logType)
}

// deleteUpTo removes at most limit elements matching match, preserving order.
func deleteUpTo[T any](records []T, limit int, match func(*T) bool) ([]T, int64) {
	kept := records[:0]
	var n int64
	for i := range records {
		if n < int64(limit) && match(&records[i]) {
			n++
			continue
		}
		kept = append(kept, records[i])
	}
	return kept, n
}

// QueryRequests implements Querier.
func (s *MemorySink) QueryRequests(_ context.Context, filter RecordFilter) ([]RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RequestRecord
	for i := range s.requests {
		r := &s.requests[i]
		if filter.matches(r.Timestamp, r.Path, r.StatusCode, r.UserID) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	start, end := filter.page(len(out))
	return out[start:end], nil
}

// QueryAccess implements Querier.
func (s *MemorySink) QueryAccess(_ context.Context, filter RecordFilter) ([]AccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AccessRecord
	for i := range s.access {
		r := &s.access[i]
		if filter.matches(r.Timestamp, r.URL, r.StatusCode, r.UserID) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	start, end := filter.page(len(out))
	return out[start:end], nil
}

// GetRequest implements Querier.
func (s *MemorySink) GetRequest(_ context.Context, id string) (*RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.requests {
		if s.requests[i].ID == id {
			rec := s.requests[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Count implements Querier. Limit and Offset are ignored.
func (s *MemorySink) Count(_ context.Context, logType LogType, filter RecordFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range logType.Types() {
		switch t {
		case LogTypeRequest:
			for i := range s.requests {
				r := &s.requests[i]
				if filter.matches(r.Timestamp, r.Path, r.StatusCode, r.UserID) {
					n++
				}
			}
		case LogTypeAccess:
			for i := range s.access {
				r := &s.access[i]
				if filter.matches(r.Timestamp, r.URL, r.StatusCode, r.UserID) {
					n++
				}
			}
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidLogType, t)
		}
	}
	return n, nil
}

// Close implements Sink.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
