// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func createTestDocumentSink(t *testing.T) *DocumentSink {
	t.Helper()

	cfg := DocumentConfig{
		Path:             t.TempDir(),
		MemTableSize:     16 << 20,
		ValueLogFileSize: 16 << 20,
		NumCompactors:    2,
		Compression:      true,
	}
	s, err := OpenDocumentSink(cfg)
	if err != nil {
		t.Fatalf("OpenDocumentSink: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentSink_Cleanup(t *testing.T) {
	exerciseSinkCleanup(t, createTestDocumentSink(t))
}

func TestDocumentSink_Query(t *testing.T) {
	exerciseSinkQuery(t, createTestDocumentSink(t))
}

func TestDocumentSink_RoundTripsRecord(t *testing.T) {
	s := createTestDocumentSink(t)
	ctx := context.Background()

	body := `{"password": "***MASKED***"}`
	uid := "42"
	rec := requestAged(time.Now().UTC(), 0, "/api/login", 401)
	rec.RequestBody = &body
	rec.UserID = &uid
	rec.RequestHeaders = map[string]string{"Authorization": "***MASKED***"}
	rec.Extra = map[string]any{"tenant": "acme"}

	if err := s.WriteRequest(ctx, rec); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	got, err := s.GetRequest(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.RequestBody == nil || *got.RequestBody != body {
		t.Errorf("body = %v, want %s", got.RequestBody, body)
	}
	if got.Duration != rec.Duration {
		t.Errorf("duration = %v, want %v", got.Duration, rec.Duration)
	}
	if got.Extra["tenant"] != "acme" {
		t.Errorf("extra = %v", got.Extra)
	}
	if got.ResponseBody != nil {
		t.Errorf("nil response body came back as %q", *got.ResponseBody)
	}
}

func TestDocumentKeyOrdersByTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := documentKey(requestCollection, base, "zzz")
	newer := documentKey(requestCollection, base.Add(time.Nanosecond), "aaa")
	if bytes.Compare(older, newer) >= 0 {
		t.Error("older key must sort before newer key regardless of id")
	}
	if bytes.Compare(older, timeKey(requestCollection, base.Add(time.Nanosecond))) >= 0 {
		t.Error("key must sort before the cutoff key of a later instant")
	}
	if !bytes.HasPrefix(older, requestCollection) {
		t.Error("key must start with its collection prefix")
	}
}

func TestDocumentSink_ClosedRejectsWrites(t *testing.T) {
	s := createTestDocumentSink(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.WriteAccess(context.Background(), accessAged(time.Now(), 0, "/", 200)); err == nil {
		t.Error("write after close should fail")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
