// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/config"
	"github.com/tomtom215/reqaudit/internal/retention"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "defaults", args: nil, want: options{logType: audit.LogTypeAll}},
		{name: "all flags", args: []string{"-days", "30", "-dry-run", "-batch-size", "50", "-log-type", "access"},
			want: options{days: 30, daysSet: true, dryRun: true, batchSize: 50, logType: audit.LogTypeAccess}},
		{name: "zero days", args: []string{"-days", "0"}, wantErr: true},
		{name: "negative days", args: []string{"-days=-5"}, wantErr: true},
		{name: "negative batch", args: []string{"-batch-size", "-1"}, wantErr: true},
		{name: "bad log type", args: []string{"-log-type", "gunicorn"}, wantErr: true},
		{name: "stray argument", args: []string{"now"}, wantErr: true},
		{name: "non numeric days", args: []string{"-days", "ten"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	if _, err := parseFlags([]string{"-h"}, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "-dry-run") {
		t.Errorf("usage does not list flags: %s", stderr.String())
	}
}

func seed(t *testing.T, sink *audit.MemorySink, ages ...time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	for _, age := range ages {
		ts := now.Add(-age)
		if err := sink.WriteRequest(context.Background(), &audit.RequestRecord{ID: audit.NewID(), Timestamp: ts, Method: "GET", Path: "/", StatusCode: 200}); err != nil {
			t.Fatal(err)
		}
		if err := sink.WriteAccess(context.Background(), &audit.AccessRecord{ID: audit.NewID(), Timestamp: ts, Method: "GET", URL: "/", StatusCode: 200}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	ropts := retention.Options{RequestDays: 90, AccessDays: 120, BatchSize: 2}

	t.Run("configured retention per type", func(t *testing.T) {
		t.Parallel()
		sink := audit.NewMemorySink()
		seed(t, sink, 10*day, 100*day, 130*day)

		var out bytes.Buffer
		if err := sweep(context.Background(), sink, ropts, options{logType: audit.LogTypeAll}, &out); err != nil {
			t.Fatalf("sweep() error = %v", err)
		}
		if !strings.Contains(out.String(), "Deleted 2 request log records") || !strings.Contains(out.String(), "Deleted 1 access log records") {
			t.Errorf("output = %q", out.String())
		}
		if n, _ := sink.Count(context.Background(), audit.LogTypeRequest, audit.RecordFilter{}); n != 1 {
			t.Errorf("request records left = %d, want 1", n)
		}
		if n, _ := sink.Count(context.Background(), audit.LogTypeAccess, audit.RecordFilter{}); n != 2 {
			t.Errorf("access records left = %d, want 2", n)
		}
	})

	t.Run("dry run with explicit days", func(t *testing.T) {
		t.Parallel()
		sink := audit.NewMemorySink()
		seed(t, sink, 10*day, 40*day, 50*day)

		var out bytes.Buffer
		opts := options{days: 30, daysSet: true, dryRun: true, logType: audit.LogTypeRequest}
		if err := sweep(context.Background(), sink, ropts, opts, &out); err != nil {
			t.Fatalf("sweep() error = %v", err)
		}
		if !strings.Contains(out.String(), "Would delete 2 request log records") {
			t.Errorf("output = %q", out.String())
		}
		if strings.Contains(out.String(), "access") {
			t.Errorf("access type should not be swept: %q", out.String())
		}
		if n, _ := sink.Count(context.Background(), audit.LogTypeRequest, audit.RecordFilter{}); n != 3 {
			t.Errorf("dry run deleted records: %d left", n)
		}
	})

	t.Run("closed sink fails", func(t *testing.T) {
		t.Parallel()
		sink := audit.NewMemorySink()
		_ = sink.Close()
		if err := sweep(context.Background(), sink, ropts, options{logType: audit.LogTypeAll}, io.Discard); err == nil {
			t.Error("sweep() on a closed sink should fail")
		}
	})
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Setenv("AUDIT_LOGGER_STORAGE", "memory")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-dry-run"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Would delete 0 request log records") {
		t.Errorf("stdout = %q", stdout.String())
	}

	if code := run(context.Background(), []string{"-days", "0"}, &stdout, &stderr); code != 2 {
		t.Errorf("run(-days 0) = %d, want 2", code)
	}
}
