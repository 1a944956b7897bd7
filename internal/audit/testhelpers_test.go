// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func requestAged(now time.Time, days int, path string, status int) *RequestRecord {
	return &RequestRecord{
		ID:         NewID(),
		Timestamp:  now.Add(-time.Duration(days) * 24 * time.Hour),
		Method:     "GET",
		Path:       path,
		StatusCode: status,
		Duration:   12 * time.Millisecond,
		Extra:      map[string]any{},
	}
}

func accessAged(now time.Time, days int, url string, status int) *AccessRecord {
	return &AccessRecord{
		ID:          NewID(),
		Timestamp:   now.Add(-time.Duration(days) * 24 * time.Hour),
		WorkerPID:   4242,
		RemoteAddr:  "10.0.0.1",
		RequestLine: "GET " + url + " HTTP/1.1",
		Method:      "GET",
		URL:         url,
		Protocol:    "HTTP/1.1",
		StatusCode:  status,
		Extra:       map[string]any{},
	}
}

// exerciseSinkCleanup runs the retention scenarios every sink must satisfy.
func exerciseSinkCleanup(t *testing.T, sink Sink) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	for _, days := range []int{10, 40, 100} {
		if err := sink.WriteRequest(ctx, requestAged(now, days, "/api/x", 200)); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		if err := sink.WriteAccess(ctx, accessAged(now, days, "/api/x", 200)); err != nil {
			t.Fatalf("WriteAccess: %v", err)
		}
	}
	cutoff := now.Add(-30 * 24 * time.Hour)

	n, err := sink.Cleanup(ctx, LogTypeRequest, cutoff, 1000, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if n != 2 {
		t.Errorf("dry run count = %d, want 2", n)
	}
	again, err := sink.Cleanup(ctx, LogTypeRequest, cutoff, 1000, true)
	if err != nil || again != 2 {
		t.Errorf("second dry run = (%d, %v), want (2, nil)", again, err)
	}

	n, err = sink.Cleanup(ctx, LogTypeRequest, cutoff, 1, false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	n, err = sink.Cleanup(ctx, LogTypeRequest, cutoff, 1, false)
	if err != nil || n != 0 {
		t.Errorf("repeat cleanup = (%d, %v), want (0, nil)", n, err)
	}

	// access records have their own lifecycle
	n, err = sink.Cleanup(ctx, LogTypeAccess, cutoff, 1000, true)
	if err != nil || n != 2 {
		t.Errorf("access dry run = (%d, %v), want (2, nil)", n, err)
	}

	if q, ok := sink.(Querier); ok {
		remaining, err := q.QueryRequests(ctx, DefaultRecordFilter())
		if err != nil {
			t.Fatalf("QueryRequests: %v", err)
		}
		if len(remaining) != 1 {
			t.Fatalf("remaining = %d, want 1", len(remaining))
		}
		age := now.Sub(remaining[0].Timestamp)
		if age > 11*24*time.Hour || age < 9*24*time.Hour {
			t.Errorf("remaining record is %v old, want the 10-day one", age)
		}
	}

	if _, err := sink.Cleanup(ctx, LogTypeAll, cutoff, 10, false); !errors.Is(err, ErrInvalidLogType) {
		t.Errorf("LogTypeAll err = %v, want ErrInvalidLogType", err)
	}
	if _, err := sink.Cleanup(ctx, LogTypeRequest, cutoff, 0, false); !errors.Is(err, ErrInvalidBatchSize) {
		t.Errorf("batch 0 err = %v, want ErrInvalidBatchSize", err)
	}
}

// exerciseSinkQuery checks the four browse predicates.
func exerciseSinkQuery(t *testing.T, sink Sink) {
	t.Helper()

	q, ok := sink.(Querier)
	if !ok {
		t.Fatalf("%s does not implement Querier", sink.Name())
	}
	ctx := context.Background()
	now := time.Now().UTC()

	alice := "alice"
	recs := []*RequestRecord{
		requestAged(now, 3, "/api/users", 200),
		requestAged(now, 2, "/api/orders", 500),
		requestAged(now, 1, "/health", 200),
	}
	recs[1].UserID = &alice
	for _, r := range recs {
		if err := sink.WriteRequest(ctx, r); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter RecordFilter
		want   []string
	}{
		{"all newest first", RecordFilter{}, []string{recs[2].ID, recs[1].ID, recs[0].ID}},
		{"path prefix", RecordFilter{PathPrefix: "/api/"}, []string{recs[1].ID, recs[0].ID}},
		{"min status", RecordFilter{MinStatus: 500}, []string{recs[1].ID}},
		{"user id", RecordFilter{UserID: "alice"}, []string{recs[1].ID}},
		{"limit offset", RecordFilter{Limit: 1, Offset: 1}, []string{recs[1].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.QueryRequests(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryRequests: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("record %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	got, err := q.GetRequest(ctx, recs[1].ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.UserID == nil || *got.UserID != "alice" {
		t.Errorf("GetRequest user = %v, want alice", got.UserID)
	}
	if _, err := q.GetRequest(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing record err = %v, want ErrNotFound", err)
	}

	n, err := q.Count(ctx, LogTypeRequest, RecordFilter{PathPrefix: "/api/"})
	if err != nil || n != 2 {
		t.Errorf("Count = (%d, %v), want (2, nil)", n, err)
	}
}

// fakeSink is a scriptable Sink for dual-sink tests.
type fakeSink struct {
	name     string
	writeErr error
	panicky  bool

	mu       sync.Mutex
	requests []*RequestRecord
	access   []*AccessRecord
	cleanups int
	deleted  int64
	cleanErr error
	closed   bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) WriteRequest(_ context.Context, rec *RequestRecord) error {
	if f.panicky {
		panic("boom")
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, rec)
	return nil
}

func (f *fakeSink) WriteAccess(_ context.Context, rec *AccessRecord) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = append(f.access, rec)
	return nil
}

func (f *fakeSink) Cleanup(context.Context, LogType, time.Time, int, bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return f.deleted, f.cleanErr
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}
