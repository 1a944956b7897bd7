// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package accesslog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/masking"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// ErrAdapterStopped is returned by CaptureWait once the adapter has stopped.
var ErrAdapterStopped = errors.New("access log adapter stopped")

// Writer persists access records.
type Writer interface {
	WriteAccess(ctx context.Context, rec *audit.AccessRecord) error
}

// Notifier receives write failures.
type Notifier interface {
	Notify(ctx context.Context, err error, fields map[string]any)
}

// Enricher adds application-defined fields to an access record.
type Enricher interface {
	Enrich(e Entry) (map[string]any, error)
}

// EnricherFunc adapts a function to Enricher.
type EnricherFunc func(e Entry) (map[string]any, error)

// Enrich implements Enricher.
func (f EnricherFunc) Enrich(e Entry) (map[string]any, error) { return f(e) }

// Options configures an Adapter.
type Options struct {
	// BufferSize is the capacity of the entry queue. Entries captured while
	// it is full are dropped.
	BufferSize int
	// WriteTimeout bounds each write.
	WriteTimeout time.Duration
	// SensitiveFields are masked in request lines and referers.
	SensitiveFields []string
	Enricher        Enricher
	Notifier        Notifier
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		BufferSize:      1024,
		WriteTimeout:    5 * time.Second,
		SensitiveFields: append([]string(nil), masking.DefaultSensitiveFields...),
	}
}

// Adapter converts captured entries into access records and writes them
// from a single background goroutine. It implements suture.Service.
type Adapter struct {
	writer   Writer
	opts     Options
	fields   *masking.FieldSet
	entries  chan Entry
	stopping atomic.Bool
	running  sync.Mutex
}

// NewAdapter creates an Adapter. Serve must be running for entries to be
// written.
func NewAdapter(w Writer, opts Options) (*Adapter, error) {
	if w == nil {
		return nil, errors.New("access log writer is required")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	return &Adapter{
		writer:  w,
		opts:    opts,
		fields:  masking.NewFieldSet(opts.SensitiveFields...),
		entries: make(chan Entry, opts.BufferSize),
	}, nil
}

// Capture enqueues e without blocking. It reports false when the entry was
// dropped because the buffer is full or the adapter has stopped.
func (a *Adapter) Capture(e Entry) bool {
	if a.stopping.Load() {
		metrics.AccessLogDropped.Inc()
		return false
	}
	select {
	case a.entries <- e:
		metrics.AccessLogQueueDepth.Set(float64(len(a.entries)))
		return true
	default:
		metrics.AccessLogDropped.Inc()
		logging.Warn().Str("request_line", masking.MaskText(e.RequestLine, a.fields)).Msg("Access log buffer full, dropping entry")
		return false
	}
}

// CaptureWait enqueues e, waiting for buffer space until ctx is done. It is
// meant for bulk sources such as file ingest, where dropping is not
// acceptable and nothing waits on the caller.
func (a *Adapter) CaptureWait(ctx context.Context, e Entry) error {
	if a.stopping.Load() {
		metrics.AccessLogDropped.Inc()
		return ErrAdapterStopped
	}
	select {
	case a.entries <- e:
		metrics.AccessLogQueueDepth.Set(float64(len(a.entries)))
		return nil
	case <-ctx.Done():
		metrics.AccessLogDropped.Inc()
		return ctx.Err()
	}
}

// Pending returns the number of buffered entries.
func (a *Adapter) Pending() int { return len(a.entries) }

// Serve writes entries until ctx is done, then drains what is buffered.
func (a *Adapter) Serve(ctx context.Context) error {
	if !a.running.TryLock() {
		return errors.New("access log adapter is already running")
	}
	defer a.running.Unlock()
	a.stopping.Store(false)

	for {
		select {
		case <-ctx.Done():
			a.stopping.Store(true)
			a.drain()
			return ctx.Err()
		case e := <-a.entries:
			a.write(e)
		}
	}
}

func (a *Adapter) drain() {
	for {
		select {
		case e := <-a.entries:
			a.write(e)
		default:
			metrics.AccessLogQueueDepth.Set(0)
			return
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (a *Adapter) String() string { return "access-log-adapter" }

func (a *Adapter) write(e Entry) {
	metrics.AccessLogQueueDepth.Set(float64(len(a.entries)))

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.WriteTimeout)
	defer cancel()

	err := a.convertAndWrite(ctx, e)
	if err == nil {
		metrics.RecordOutcome(string(audit.LogTypeAccess), metrics.OutcomeWritten)
		return
	}

	metrics.RecordOutcome(string(audit.LogTypeAccess), metrics.OutcomeFailed)
	logging.Error().Err(err).Int("worker_pid", e.WorkerPID).Msg("Failed to write access record")
	if a.opts.Notifier != nil {
		a.opts.Notifier.Notify(ctx, err, map[string]any{
			"component":  a.String(),
			"worker_pid": e.WorkerPID,
		})
	}
}

func (a *Adapter) convertAndWrite(ctx context.Context, e Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("access log write panicked: %v", rec)
		}
	}()

	rec := toRecord(e, a.fields)
	rec.Extra = masking.MaskAny(a.enrich(e), a.fields)

	start := time.Now()
	err = a.writer.WriteAccess(ctx, rec)
	metrics.RecordSinkWrite(sinkName(a.writer), string(audit.LogTypeAccess), time.Since(start), err)
	return err
}

func (a *Adapter) enrich(e Entry) (extra map[string]any) {
	extra = map[string]any{}
	if a.opts.Enricher == nil {
		return extra
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn().Str("panic", fmt.Sprint(rec)).Msg("Access log enricher panicked")
			extra = map[string]any{}
		}
	}()
	data, err := a.opts.Enricher.Enrich(e)
	if err != nil || data == nil {
		if err != nil {
			logging.Warn().Err(err).Msg("Access log enricher failed")
		}
		return map[string]any{}
	}
	return data
}

func sinkName(w Writer) string {
	if named, ok := w.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "writer"
}
