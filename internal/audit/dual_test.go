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

func TestNewDualSink_Validation(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb"}
	doc := &fakeSink{name: "badger"}

	tests := []struct {
		name    string
		rel     Sink
		doc     Sink
		opts    DualOptions
		wantErr bool
	}{
		{"both", rel, doc, DualOptions{WriteToBoth: true}, false},
		{"both missing document", rel, nil, DualOptions{WriteToBoth: true}, true},
		{"relational only", rel, nil, DualOptions{}, false},
		{"document primary", nil, doc, DualOptions{Primary: TargetDocument}, false},
		{"document primary missing", rel, nil, DualOptions{Primary: TargetDocument}, true},
		{"bad primary", rel, doc, DualOptions{Primary: "mongo"}, true},
	}
	for _, tt := range tests {
		_, err := NewDualSink(tt.rel, tt.doc, tt.opts)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDualSink_WritesBoth(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb"}
	doc := &fakeSink{name: "badger"}
	d, err := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})
	if err != nil {
		t.Fatalf("NewDualSink: %v", err)
	}

	rec := requestAged(time.Now(), 0, "/api/x", 200)
	if err := d.WriteRequest(context.Background(), rec); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if len(rel.requests) != 1 || len(doc.requests) != 1 {
		t.Errorf("writes: relational=%d document=%d, want 1 each", len(rel.requests), len(doc.requests))
	}
	if d.Name() != "duckdb+badger" {
		t.Errorf("Name = %q", d.Name())
	}
}

func TestDualSink_SelectsOne(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb"}
	doc := &fakeSink{name: "badger"}
	d, err := NewDualSink(rel, doc, DualOptions{Primary: TargetDocument})
	if err != nil {
		t.Fatalf("NewDualSink: %v", err)
	}

	if err := d.WriteAccess(context.Background(), accessAged(time.Now(), 0, "/", 200)); err != nil {
		t.Fatalf("WriteAccess: %v", err)
	}
	if len(rel.access) != 0 || len(doc.access) != 1 {
		t.Errorf("writes: relational=%d document=%d, want 0 and 1", len(rel.access), len(doc.access))
	}

	doc.deleted = 5
	n, err := d.Cleanup(context.Background(), LogTypeAccess, time.Now(), 10, false)
	if err != nil || n != 5 {
		t.Errorf("Cleanup = (%d, %v), want (5, nil)", n, err)
	}
	if rel.cleanups != 0 {
		t.Error("inactive sink was cleaned")
	}
}

func TestDualSink_PartialFailureReported(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("disk full")
	rel := &fakeSink{name: "duckdb"}
	doc := &fakeSink{name: "badger", writeErr: diskFull}
	d, err := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})
	if err != nil {
		t.Fatalf("NewDualSink: %v", err)
	}

	err = d.WriteRequest(context.Background(), requestAged(time.Now(), 0, "/api/x", 200))
	if err == nil {
		t.Fatal("partial failure must be reported")
	}
	var dwErr *DualWriteError
	if !errors.As(err, &dwErr) {
		t.Fatalf("err = %T, want *DualWriteError", err)
	}
	if !dwErr.Partial() {
		t.Error("Partial() = false, relational write succeeded")
	}
	if len(dwErr.Succeeded) != 1 || dwErr.Succeeded[0] != "duckdb" {
		t.Errorf("Succeeded = %v", dwErr.Succeeded)
	}
	if !errors.Is(err, diskFull) {
		t.Error("errors.Is should reach the underlying sink error")
	}
	if len(rel.requests) != 1 {
		t.Error("healthy sink did not receive the record")
	}
}

func TestDualSink_RecoversSinkPanic(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb", panicky: true}
	doc := &fakeSink{name: "badger"}
	d, _ := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})

	err := d.WriteRequest(context.Background(), requestAged(time.Now(), 0, "/", 200))
	var dwErr *DualWriteError
	if !errors.As(err, &dwErr) || len(dwErr.Failures) != 1 {
		t.Fatalf("err = %v, want one failure", err)
	}
	if len(doc.requests) != 1 {
		t.Error("document sink should still have the record")
	}
}

func TestDualSink_CleanupSumsAndJoinsErrors(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb", deleted: 3}
	doc := &fakeSink{name: "badger", deleted: 4, cleanErr: errors.New("txn too big")}
	d, _ := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})

	n, err := d.Cleanup(context.Background(), LogTypeRequest, time.Now(), 100, false)
	if n != 7 {
		t.Errorf("total = %d, want 7", n)
	}
	if err == nil {
		t.Error("document sink error was swallowed")
	}
	if rel.cleanups != 1 || doc.cleanups != 1 {
		t.Error("both sinks should be cleaned even when one fails")
	}
}

func TestDualSink_CloseClosesBoth(t *testing.T) {
	t.Parallel()

	rel := &fakeSink{name: "duckdb"}
	doc := &fakeSink{name: "badger"}
	d, _ := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rel.closed || !doc.closed {
		t.Error("Close must close both sinks")
	}
}

func TestDualSink_MemoryBackedEndToEnd(t *testing.T) {
	t.Parallel()

	rel := NewMemorySink()
	doc := NewMemorySink()
	d, _ := NewDualSink(rel, doc, DualOptions{WriteToBoth: true})

	now := time.Now().UTC()
	ctx := context.Background()
	for _, days := range []int{10, 40, 100} {
		if err := d.WriteRequest(ctx, requestAged(now, days, "/api/x", 200)); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
	}
	n, err := d.Cleanup(ctx, LogTypeRequest, now.Add(-30*24*time.Hour), 1000, false)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 4 {
		t.Errorf("summed deletes = %d, want 4 (2 per sink)", n)
	}
	q, ok := d.Querier()
	if !ok {
		t.Fatal("memory primary should be a Querier")
	}
	left, _ := q.Count(ctx, LogTypeRequest, RecordFilter{})
	if left != 1 {
		t.Errorf("primary has %d records, want 1", left)
	}
}
