// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/reqaudit/internal/accesslog"
	"github.com/tomtom215/reqaudit/internal/logging"
)

// AccessLogIngestService replays a combined-format access-log file into the
// access-log adapter once. A finished ingest is never restarted; an ingest
// that fails to open or read the file is retried by suture.
type AccessLogIngestService struct {
	path       string
	adapter    *accesslog.Adapter
	pid        int
	serverAddr string
}

// NewAccessLogIngestService creates the service. pid and serverAddr are
// stamped on every ingested record.
func NewAccessLogIngestService(path string, adapter *accesslog.Adapter, pid int, serverAddr string) (*AccessLogIngestService, error) {
	if path == "" {
		return nil, errors.New("access log path is required")
	}
	if adapter == nil {
		return nil, errors.New("access log adapter is required")
	}
	return &AccessLogIngestService{path: path, adapter: adapter, pid: pid, serverAddr: serverAddr}, nil
}

// Serve implements suture.Service.
func (s *AccessLogIngestService) Serve(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	defer func() { _ = f.Close() }()

	stats, err := accesslog.IngestReader(ctx, f, s.adapter, s.pid, s.serverAddr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, accesslog.ErrAdapterStopped) {
			logging.Warn().Str("path", s.path).Int("captured", stats.Captured).Msg("Access log adapter stopped during ingest")
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("ingest access log %s: %w", s.path, err)
	}

	logging.Info().
		Str("path", s.path).
		Int("lines", stats.Lines).
		Int("captured", stats.Captured).
		Int("malformed", stats.Malformed).
		Int("dropped", stats.Dropped).
		Msg("Access log ingest complete")
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for suture's logs.
func (s *AccessLogIngestService) String() string {
	return "access-log-ingest"
}
