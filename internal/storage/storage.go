// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Package storage opens the audit sink selected by configuration. It is
// shared by the server and the cleanup command.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/config"
	"github.com/tomtom215/reqaudit/internal/logging"
)

// Storage is the configured sink and its browse interface.
type Storage struct {
	// Sink receives records and runs retention deletes.
	Sink audit.Sink
	// Querier is nil when the sink cannot be browsed.
	Querier audit.Querier

	db *sql.DB
}

// Open opens the backends selected by AUDIT_LOGGER_STORAGE and
// AUDIT_LOGGER_DUAL_WRITE.
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		logging.Warn().Msg("Using in-memory audit storage; records are lost on restart")
		sink := audit.NewMemorySink()
		return &Storage{Sink: sink, Querier: sink}, nil
	}

	st := &Storage{}
	var rel, doc audit.Sink

	if cfg.Storage.Backend == config.BackendRelational || cfg.Storage.DualWrite {
		db, err := audit.OpenDuckDB(ctx, cfg.DuckDBConfig())
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		duck := audit.NewDuckDBSink(db)
		if err := duck.CreateTables(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create audit tables: %w", err)
		}
		st.db = db
		rel = duck
		logging.Info().Str("path", cfg.Storage.DuckDB.Path).Msg("Relational audit store ready")
	}

	if cfg.Storage.Backend == config.BackendDocument || cfg.Storage.DualWrite {
		badger, err := audit.OpenDocumentSink(cfg.DocumentConfig())
		if err != nil {
			st.closeDB()
			return nil, fmt.Errorf("open document store: %w", err)
		}
		doc = badger
		logging.Info().Str("path", cfg.Storage.Document.Path).Msg("Document audit store ready")
	}

	if cfg.Storage.DualWrite {
		opts := cfg.DualOptions()
		dual, err := audit.NewDualSink(rel, doc, opts)
		if err != nil {
			_ = doc.Close()
			st.closeDB()
			return nil, err
		}
		st.Sink = dual
		st.Querier, _ = dual.Querier()
		logging.Info().Str("primary", string(opts.Primary)).Msg("Dual-write audit storage enabled")
		return st, nil
	}

	if rel != nil {
		st.Sink = rel
	} else {
		st.Sink = doc
	}
	if q, ok := st.Sink.(audit.Querier); ok {
		st.Querier = q
	}
	return st, nil
}

// HasDatabase reports whether a DuckDB handle is open.
func (s *Storage) HasDatabase() bool { return s.db != nil }

// Ping checks the DuckDB connection. It returns nil when none is open.
func (s *Storage) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Storage) closeDB() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing duckdb")
		}
	}
}

// Close closes the sink, then the database handle it borrowed.
func (s *Storage) Close() error {
	err := s.Sink.Close()
	s.closeDB()
	if errors.Is(err, audit.ErrSinkClosed) {
		return nil
	}
	return err
}
