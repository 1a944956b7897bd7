// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// Target names one side of a DualSink.
type Target string

const (
	// TargetRelational selects the relational sink.
	TargetRelational Target = "relational"
	// TargetDocument selects the document-store sink.
	TargetDocument Target = "document"
)

// DualOptions configures a DualSink.
type DualOptions struct {
	// WriteToBoth writes every record to both sinks. When false only
	// Primary receives writes and cleanup.
	WriteToBoth bool
	// Primary is the sink used when WriteToBoth is false, and the sink
	// queried by the admin views. Defaults to TargetRelational.
	Primary Target
}

// SinkError is one sink's failure inside a DualWriteError.
type SinkError struct {
	Sink string
	Err  error
}

// DualWriteError reports a write that failed on at least one sink of a
// DualSink. Sinks listed in Succeeded did store the record; nothing is
// rolled back.
type DualWriteError struct {
	LogType   LogType
	RecordID  string
	Failures  []SinkError
	Succeeded []string
}

// Error implements error.
func (e *DualWriteError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Sink+": "+f.Err.Error())
	}
	kind := "dual write failed"
	if e.Partial() {
		kind = "partial dual write"
	}
	return fmt.Sprintf("%s for %s record %s (stored in %v): %s",
		kind, e.LogType, e.RecordID, e.Succeeded, strings.Join(parts, "; "))
}

// Unwrap exposes each sink's error to errors.Is and errors.As.
func (e *DualWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Partial reports whether at least one sink stored the record.
func (e *DualWriteError) Partial() bool {
	return len(e.Succeeded) > 0
}

// DualSink combines a relational and a document sink. Both underlying sinks
// are written concurrently; there is no cross-sink transaction, so the two
// stores can diverge after a partial failure. Divergence is logged and
// counted, not reconciled.
type DualSink struct {
	relational Sink
	document   Sink
	opts       DualOptions
}

// NewDualSink builds a DualSink. With WriteToBoth both sinks are required;
// otherwise only the primary is.
func NewDualSink(relational, document Sink, opts DualOptions) (*DualSink, error) {
	if opts.Primary == "" {
		opts.Primary = TargetRelational
	}
	if opts.Primary != TargetRelational && opts.Primary != TargetDocument {
		return nil, fmt.Errorf("unknown primary sink %q", opts.Primary)
	}
	if opts.WriteToBoth && (relational == nil || document == nil) {
		return nil, errors.New("dual write requires both a relational and a document sink")
	}
	d := &DualSink{relational: relational, document: document, opts: opts}
	if d.primary() == nil {
		return nil, fmt.Errorf("primary sink %q is not configured", opts.Primary)
	}
	return d, nil
}

// Name implements Sink.
func (d *DualSink) Name() string {
	if !d.opts.WriteToBoth {
		return d.primary().Name()
	}
	return d.relational.Name() + "+" + d.document.Name()
}

func (d *DualSink) primary() Sink {
	if d.opts.Primary == TargetDocument {
		return d.document
	}
	return d.relational
}

// active returns the sinks that receive writes and cleanups.
func (d *DualSink) active() []Sink {
	if d.opts.WriteToBoth {
		return []Sink{d.relational, d.document}
	}
	return []Sink{d.primary()}
}

// fanOut runs write against every active sink concurrently.
func (d *DualSink) fanOut(ctx context.Context, logType LogType, id string, write func(context.Context, Sink) error) error {
	sinks := d.active()
	if len(sinks) == 1 {
		return write(ctx, sinks[0])
	}

	errs := make([]error, len(sinks))
	var wg sync.WaitGroup
	for i, s := range sinks {
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
				}
			}()
			errs[i] = write(ctx, s)
		}(i, s)
	}
	wg.Wait()

	dwErr := &DualWriteError{LogType: logType, RecordID: id}
	for i, s := range sinks {
		if errs[i] != nil {
			dwErr.Failures = append(dwErr.Failures, SinkError{Sink: s.Name(), Err: errs[i]})
		} else {
			dwErr.Succeeded = append(dwErr.Succeeded, s.Name())
		}
	}
	if len(dwErr.Failures) == 0 {
		return nil
	}

	if dwErr.Partial() {
		metrics.DualWriteDivergence.WithLabelValues(string(logType)).Inc()
		logging.Ctx(ctx).Warn().
			Str("log_type", string(logType)).
			Str("record_id", id).
			Strs("stored_in", dwErr.Succeeded).
			Err(dwErr).
			Msg("Dual write diverged")
	}
	return dwErr
}

// WriteRequest implements Sink.
func (d *DualSink) WriteRequest(ctx context.Context, rec *RequestRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	return d.fanOut(ctx, LogTypeRequest, rec.ID, func(ctx context.Context, s Sink) error {
		return s.WriteRequest(ctx, rec)
	})
}

// WriteAccess implements Sink.
func (d *DualSink) WriteAccess(ctx context.Context, rec *AccessRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	return d.fanOut(ctx, LogTypeAccess, rec.ID, func(ctx context.Context, s Sink) error {
		return s.WriteAccess(ctx, rec)
	})
}

// Cleanup implements Sink. Counts from all active sinks are summed; a
// failure in one sink does not stop cleanup of the other.
func (d *DualSink) Cleanup(ctx context.Context, logType LogType, olderThan time.Time, batchSize int, dryRun bool) (int64, error) {
	var total int64
	var errs []error
	for _, s := range d.active() {
		n, err := s.Cleanup(ctx, logType, olderThan, batchSize, dryRun)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return total, errors.Join(errs...)
}

// Querier returns the primary sink's Querier, if it has one.
func (d *DualSink) Querier() (Querier, bool) {
	q, ok := d.primary().(Querier)
	return q, ok
}

// Close implements Sink and closes every configured sink.
func (d *DualSink) Close() error {
	var errs []error
	for _, s := range []Sink{d.relational, d.document} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
