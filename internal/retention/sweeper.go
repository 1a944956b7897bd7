// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// Default retention settings.
const (
	DefaultRequestDays = 90
	DefaultAccessDays  = 120
	DefaultBatchSize   = 1000
)

var (
	// ErrInvalidDays is returned for a non-positive retention period.
	ErrInvalidDays = errors.New("retention days must be positive")

	// ErrInvalidBatchSize is returned for a non-positive batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// Options holds the configured retention per record type.
type Options struct {
	RequestDays int
	AccessDays  int
	BatchSize   int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		RequestDays: DefaultRequestDays,
		AccessDays:  DefaultAccessDays,
		BatchSize:   DefaultBatchSize,
	}
}

// Validate checks that every value is positive.
func (o Options) Validate() error {
	if o.RequestDays <= 0 || o.AccessDays <= 0 {
		return ErrInvalidDays
	}
	if o.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	return nil
}

// Request describes one sweep.
type Request struct {
	// LogType is request, access or all.
	LogType audit.LogType
	// OlderThanDays overrides the configured retention of every selected
	// type. Zero uses the per-type configuration.
	OlderThanDays int
	// BatchSize overrides the configured batch size when positive.
	BatchSize int
	// DryRun counts matching records without deleting them.
	DryRun bool
}

// Result reports one sweep.
type Result struct {
	RequestDeleted int64 `json:"request_deleted"`
	AccessDeleted  int64 `json:"access_deleted"`
	DryRun         bool  `json:"dry_run"`

	RequestCutoff time.Time `json:"request_cutoff"`
	AccessCutoff  time.Time `json:"access_cutoff"`
}

// Total returns the sum of both counts.
func (r Result) Total() int64 {
	return r.RequestDeleted + r.AccessDeleted
}

// Sweeper deletes records past their retention cutoff through a Sink.
type Sweeper struct {
	sink audit.Sink
	opts Options
	now  func() time.Time
}

// New creates a Sweeper.
func New(sink audit.Sink, opts Options) (*Sweeper, error) {
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Sweeper{sink: sink, opts: opts, now: time.Now}, nil
}

// Options returns the sweeper's configuration.
func (s *Sweeper) Options() Options { return s.opts }

// Sweep deletes, or with DryRun counts, records older than the cutoff of
// each selected type. Types are swept one after another; each delete batch
// is self-contained, so concurrent sweeps are safe. Cancellation is checked
// between batches and between types. On error the counts reached so far
// are returned together with the error, and completed batches stay deleted.
func (s *Sweeper) Sweep(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := s.sweep(ctx, req)
	metrics.RecordSweep(time.Since(start), err)
	return res, err
}

func (s *Sweeper) sweep(ctx context.Context, req Request) (Result, error) {
	res := Result{DryRun: req.DryRun}

	logType := req.LogType
	if logType == "" {
		logType = audit.LogTypeAll
	}
	if logType != audit.LogTypeAll && logType != audit.LogTypeRequest && logType != audit.LogTypeAccess {
		return res, fmt.Errorf("%w: %q", audit.ErrInvalidLogType, logType)
	}
	if req.OlderThanDays < 0 {
		return res, ErrInvalidDays
	}
	if req.BatchSize < 0 {
		return res, ErrInvalidBatchSize
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = s.opts.BatchSize
	}

	now := s.now()
	for _, t := range logType.Types() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		days := req.OlderThanDays
		if days == 0 {
			days = s.daysFor(t)
		}
		cutoff := now.AddDate(0, 0, -days)

		n, err := s.sink.Cleanup(ctx, t, cutoff, batchSize, req.DryRun)
		switch t {
		case audit.LogTypeRequest:
			res.RequestDeleted, res.RequestCutoff = n, cutoff
		case audit.LogTypeAccess:
			res.AccessDeleted, res.AccessCutoff = n, cutoff
		}
		if err != nil {
			logging.Error().
				Err(err).
				Str("log_type", string(t)).
				Int64("deleted", n).
				Msg("Retention sweep aborted")
			return res, fmt.Errorf("sweep %s logs: %w", t, err)
		}

		logging.Info().
			Str("log_type", string(t)).
			Int("older_than_days", days).
			Time("cutoff", cutoff).
			Int64("count", n).
			Bool("dry_run", req.DryRun).
			Msg("Retention sweep finished")
	}
	return res, nil
}

func (s *Sweeper) daysFor(t audit.LogType) int {
	if t == audit.LogTypeAccess {
		return s.opts.AccessDays
	}
	return s.opts.RequestDays
}
