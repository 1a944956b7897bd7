// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/config"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Setenv("AUDIT_LOGGER_DUCKDB_PATH", filepath.Join(dir, "audit.duckdb"))
	t.Setenv("AUDIT_LOGGER_DOCUMENT_STORE_PATH", filepath.Join(dir, "badger"))
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantSink string
		wantDB   bool
	}{
		{"memory", map[string]string{"AUDIT_LOGGER_STORAGE": "memory"}, "memory", false},
		{"relational", map[string]string{"AUDIT_LOGGER_STORAGE": "relational"}, "duckdb", true},
		{"document", map[string]string{"AUDIT_LOGGER_STORAGE": "document"}, "badger", false},
		{"dual", map[string]string{"AUDIT_LOGGER_STORAGE": "relational", "AUDIT_LOGGER_DUAL_WRITE": "true"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.env)
			ctx := context.Background()

			st, err := Open(ctx, cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() {
				if err := st.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}()

			if tt.wantSink != "" && st.Sink.Name() != tt.wantSink {
				t.Errorf("sink = %q, want %q", st.Sink.Name(), tt.wantSink)
			}
			if st.HasDatabase() != tt.wantDB {
				t.Errorf("HasDatabase() = %v, want %v", st.HasDatabase(), tt.wantDB)
			}
			if err := st.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
			if st.Querier == nil {
				t.Fatal("Querier is nil")
			}

			rec := &audit.RequestRecord{ID: audit.NewID(), Timestamp: time.Now().UTC(), Method: "GET", Path: "/x", StatusCode: 200}
			if err := st.Sink.WriteRequest(ctx, rec); err != nil {
				t.Fatalf("WriteRequest() error = %v", err)
			}
			got, err := st.Querier.GetRequest(ctx, rec.ID)
			if err != nil || got.Path != "/x" {
				t.Errorf("GetRequest() = %+v, %v", got, err)
			}
		})
	}
}
