// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupSweeper returns a sweeper over a memory sink holding request and
// access records of the given ages in days.
func setupSweeper(t *testing.T, requestAges, accessAges []int) (*Sweeper, *audit.MemorySink) {
	t.Helper()

	sink := audit.NewMemorySink()
	ctx := context.Background()
	for _, d := range requestAges {
		rec := &audit.RequestRecord{
			ID:         audit.NewID(),
			Timestamp:  fixedNow.AddDate(0, 0, -d),
			Method:     "GET",
			Path:       "/api/x",
			StatusCode: 200,
			Extra:      map[string]any{},
		}
		if err := sink.WriteRequest(ctx, rec); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
	}
	for _, d := range accessAges {
		rec := &audit.AccessRecord{
			ID:         audit.NewID(),
			Timestamp:  fixedNow.AddDate(0, 0, -d),
			Method:     "GET",
			URL:        "/",
			StatusCode: 200,
			Extra:      map[string]any{},
		}
		if err := sink.WriteAccess(ctx, rec); err != nil {
			t.Fatalf("WriteAccess: %v", err)
		}
	}

	s, err := New(sink, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	return s, sink
}

func count(t *testing.T, sink *audit.MemorySink, logType audit.LogType) int64 {
	t.Helper()
	n, err := sink.Count(context.Background(), logType, audit.RecordFilter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestSweep_DeletesOnlyPastCutoff(t *testing.T) {
	t.Parallel()

	s, sink := setupSweeper(t, []int{10, 40, 100}, nil)

	res, err := s.Sweep(context.Background(), Request{LogType: audit.LogTypeRequest, OlderThanDays: 30, BatchSize: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.RequestDeleted != 2 {
		t.Errorf("RequestDeleted = %d, want 2", res.RequestDeleted)
	}

	remaining, _ := sink.QueryRequests(context.Background(), audit.RecordFilter{})
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
	if age := fixedNow.Sub(remaining[0].Timestamp); age != 10*24*time.Hour {
		t.Errorf("remaining record age = %v, want 10 days", age)
	}
}

func TestSweep_DryRunNeverDeletes(t *testing.T) {
	t.Parallel()

	s, sink := setupSweeper(t, []int{10, 40, 100}, []int{5, 200})

	for i := 0; i < 2; i++ {
		res, err := s.Sweep(context.Background(), Request{LogType: audit.LogTypeAll, OlderThanDays: 30, DryRun: true})
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if !res.DryRun || res.RequestDeleted != 2 || res.AccessDeleted != 1 {
			t.Errorf("dry run result = %+v", res)
		}
	}
	if count(t, sink, audit.LogTypeAll) != 5 {
		t.Errorf("records changed by dry run")
	}
}

func TestSweep_SecondRunDeletesNothing(t *testing.T) {
	t.Parallel()

	s, _ := setupSweeper(t, []int{1, 91, 92, 93}, []int{119, 121})

	first, err := s.Sweep(context.Background(), Request{})
	if err != nil {
		t.Fatalf("first Sweep: %v", err)
	}
	if first.RequestDeleted != 3 || first.AccessDeleted != 1 {
		t.Errorf("first = %+v, want 3 request and 1 access", first)
	}

	second, err := s.Sweep(context.Background(), Request{})
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if second.Total() != 0 {
		t.Errorf("second sweep deleted %d, want 0", second.Total())
	}
}

func TestSweep_PerTypeCutoffs(t *testing.T) {
	t.Parallel()

	s, _ := setupSweeper(t, nil, nil)
	res, err := s.Sweep(context.Background(), Request{LogType: audit.LogTypeAll, DryRun: true})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if want := fixedNow.AddDate(0, 0, -90); !res.RequestCutoff.Equal(want) {
		t.Errorf("RequestCutoff = %v, want %v", res.RequestCutoff, want)
	}
	if want := fixedNow.AddDate(0, 0, -120); !res.AccessCutoff.Equal(want) {
		t.Errorf("AccessCutoff = %v, want %v", res.AccessCutoff, want)
	}
}

func TestSweep_InvalidRequests(t *testing.T) {
	t.Parallel()

	s, _ := setupSweeper(t, nil, nil)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"negative days", Request{OlderThanDays: -1}, ErrInvalidDays},
		{"negative batch", Request{BatchSize: -5}, ErrInvalidBatchSize},
		{"unknown type", Request{LogType: "audit"}, audit.ErrInvalidLogType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Sweep(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNew_ValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(audit.NewMemorySink(), Options{RequestDays: 0, AccessDays: 1, BatchSize: 1}); !errors.Is(err, ErrInvalidDays) {
		t.Errorf("err = %v, want ErrInvalidDays", err)
	}
	if _, err := New(audit.NewMemorySink(), Options{RequestDays: 1, AccessDays: 1}); !errors.Is(err, ErrInvalidBatchSize) {
		t.Errorf("err = %v, want ErrInvalidBatchSize", err)
	}
	if _, err := New(nil, DefaultOptions()); err == nil {
		t.Error("expected error for nil sink")
	}
}

// failingSink fails cleanup of one log type after reporting partial progress.
type failingSink struct {
	*audit.MemorySink
	failOn audit.LogType
}

func (f *failingSink) Cleanup(ctx context.Context, logType audit.LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error) {
	if logType == f.failOn {
		return 7, errors.New("database is locked")
	}
	return f.MemorySink.Cleanup(ctx, logType, olderThan, batchSize, dryRun)
}

func TestSweep_FailureReturnsPartialCount(t *testing.T) {
	t.Parallel()

	s, err := New(&failingSink{MemorySink: audit.NewMemorySink(), failOn: audit.LogTypeAccess}, DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := s.Sweep(context.Background(), Request{LogType: audit.LogTypeAll})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.AccessDeleted != 7 {
		t.Errorf("AccessDeleted = %d, want partial count 7", res.AccessDeleted)
	}
}

func TestSweep_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	s, sink := setupSweeper(t, []int{100}, []int{200})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Sweep(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if count(t, sink, audit.LogTypeAll) != 2 {
		t.Error("cancelled sweep deleted records")
	}
}

func TestSweep_ConcurrentSweepsAreSafe(t *testing.T) {
	t.Parallel()

	ages := make([]int, 500)
	for i := range ages {
		ages[i] = 100 + i%50
	}
	s, sink := setupSweeper(t, ages, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Sweep(context.Background(), Request{LogType: audit.LogTypeRequest, BatchSize: 7})
			if err != nil {
				t.Errorf("Sweep: %v", err)
				return
			}
			mu.Lock()
			total += res.RequestDeleted
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 500 {
		t.Errorf("total deleted = %d, want 500", total)
	}
	if count(t, sink, audit.LogTypeRequest) != 0 {
		t.Error("records remain after concurrent sweeps")
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	t.Parallel()

	s, sink := setupSweeper(t, []int{100}, []int{10})
	sched, err := NewScheduler(s, time.Hour, true)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if last, _, _ := sched.LastRun(); !last.IsZero() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}

	_, res, runErr := sched.LastRun()
	if runErr != nil || res.RequestDeleted != 1 {
		t.Errorf("last run = %+v, %v", res, runErr)
	}
	if count(t, sink, audit.LogTypeAccess) != 1 {
		t.Error("access record within retention was deleted")
	}
}

func TestNewScheduler_Validation(t *testing.T) {
	t.Parallel()

	s, _ := setupSweeper(t, nil, nil)
	if _, err := NewScheduler(s, 0, false); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := NewScheduler(nil, time.Hour, false); err == nil {
		t.Error("expected error for nil sweeper")
	}
}
