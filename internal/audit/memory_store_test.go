// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySink_Cleanup(t *testing.T) {
	t.Parallel()
	exerciseSinkCleanup(t, NewMemorySink())
}

func TestMemorySink_Query(t *testing.T) {
	t.Parallel()
	exerciseSinkQuery(t, NewMemorySink())
}

func TestMemorySink_RejectsNilAndClosed(t *testing.T) {
	t.Parallel()

	s := NewMemorySink()
	ctx := context.Background()
	if err := s.WriteRequest(ctx, nil); !errors.Is(err, ErrNilRecord) {
		t.Errorf("nil record err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.WriteRequest(ctx, requestAged(time.Now(), 0, "/", 200)); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("closed sink err = %v", err)
	}
}

// recordingDeleter records every batch cleanupInBatches asks for.
type recordingDeleter struct {
	remaining int64
	batches   []int64
	failAt    int
	cancel    func()
	cancelAt  int
}

func (r *recordingDeleter) countOlder(context.Context, LogType, time.Time) (int64, error) {
	return r.remaining, nil
}

func (r *recordingDeleter) deleteOlderBatch(_ context.Context, _ LogType, _ time.Time, limit int) (int64, error) {
	if r.failAt > 0 && len(r.batches)+1 == r.failAt {
		return 0, errors.New("lock timeout")
	}
	n := int64(limit)
	if r.remaining < n {
		n = r.remaining
	}
	r.remaining -= n
	r.batches = append(r.batches, n)
	if r.cancel != nil && len(r.batches) == r.cancelAt {
		r.cancel()
	}
	return n, nil
}

func TestCleanupInBatches_BoundedBatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rows        int64
		batch       int
		wantBatches int
	}{
		{"exact multiple", 10, 5, 3},
		{"remainder", 12, 5, 3},
		{"empty", 0, 5, 1},
		{"single batch", 3, 1000, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &recordingDeleter{remaining: tt.rows}
			n, err := cleanupInBatches(context.Background(), "test", d, LogTypeRequest, time.Now(), tt.batch, false)
			if err != nil {
				t.Fatalf("cleanup: %v", err)
			}
			if n != tt.rows {
				t.Errorf("deleted %d, want %d", n, tt.rows)
			}
			if len(d.batches) != tt.wantBatches {
				t.Errorf("batches = %v, want %d of them", d.batches, tt.wantBatches)
			}
			for _, b := range d.batches {
				if b > int64(tt.batch) {
					t.Errorf("batch of %d exceeds limit %d", b, tt.batch)
				}
			}
		})
	}
}

func TestCleanupInBatches_DryRunDoesNotDelete(t *testing.T) {
	t.Parallel()

	d := &recordingDeleter{remaining: 7}
	n, err := cleanupInBatches(context.Background(), "test", d, LogTypeAccess, time.Now(), 2, true)
	if err != nil || n != 7 {
		t.Fatalf("dry run = (%d, %v), want (7, nil)", n, err)
	}
	if len(d.batches) != 0 {
		t.Errorf("dry run issued %d deletes", len(d.batches))
	}
}

func TestCleanupInBatches_PartialCountOnError(t *testing.T) {
	t.Parallel()

	d := &recordingDeleter{remaining: 100, failAt: 3}
	n, err := cleanupInBatches(context.Background(), "test", d, LogTypeRequest, time.Now(), 10, false)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if n != 20 {
		t.Errorf("partial count = %d, want 20", n)
	}
}

func TestCleanupInBatches_CancelBetweenBatches(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &recordingDeleter{remaining: 100, cancel: cancel, cancelAt: 2}

	n, err := cleanupInBatches(ctx, "test", d, LogTypeRequest, time.Now(), 10, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != 20 || len(d.batches) != 2 {
		t.Errorf("deleted %d in %d batches, want 20 in 2", n, len(d.batches))
	}
}

func TestParseLogType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    LogType
		wantErr bool
	}{
		{"request", LogTypeRequest, false},
		{"ACCESS", LogTypeAccess, false},
		{"all", LogTypeAll, false},
		{"", LogTypeAll, false},
		{"gunicorn", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLogType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogType(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if types := LogTypeAll.Types(); len(types) != 2 {
		t.Errorf("LogTypeAll.Types() = %v", types)
	}
}
