// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/extractor"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// Writer persists or enqueues one request record. audit.Sink and
// queue.Publisher both satisfy it.
type Writer interface {
	WriteRequest(ctx context.Context, rec *audit.RequestRecord) error
}

// Notifier receives pipeline failures. It must not block for long and must
// not panic.
type Notifier interface {
	Notify(ctx context.Context, err error, fields map[string]any)
}

// Options configures an Interceptor.
type Options struct {
	// Enabled is the master switch. When false every request is skipped.
	Enabled bool
	// Async marks the Writer as a queue; successful writes count as queued.
	Async bool
	// RaiseExceptions re-panics logging failures instead of swallowing them.
	// Debug and test use only.
	RaiseExceptions bool
}

// Interceptor records every non-excluded request through a Writer.
type Interceptor struct {
	extractor *extractor.Extractor
	writer    Writer
	notifier  Notifier
	opts      Options
	name      string
}

// NewInterceptor creates an Interceptor. notifier may be nil.
func NewInterceptor(ext *extractor.Extractor, w Writer, notifier Notifier, opts Options) (*Interceptor, error) {
	if ext == nil {
		return nil, errors.New("extractor is required")
	}
	if w == nil {
		return nil, errors.New("writer is required")
	}
	name := "writer"
	if named, ok := w.(interface{ Name() string }); ok {
		name = named.Name()
	}
	return &Interceptor{extractor: ext, writer: w, notifier: notifier, opts: opts, name: name}, nil
}

// Handler wraps next with audit logging.
func (i *Interceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.opts.Enabled || i.extractor.Excluded(r.URL.Path) {
			metrics.RecordOutcome(string(audit.LogTypeRequest), metrics.OutcomeSkipped)
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		reqBody, readErr := i.readBody(r)

		eopts := i.extractor.Options()
		cw := newCaptureWriter(w, eopts.CaptureLimit(), eopts.LogResponseBody)

		handlerPanic := serve(next, cw, r)
		if handlerPanic != nil && cw.statusCode == http.StatusOK && !cw.wroteHeader {
			cw.statusCode = http.StatusInternalServerError
		}
		elapsed := time.Since(started)

		err := i.record(r, reqBody, cw.response(), started, elapsed)
		if readErr != nil {
			err = errors.Join(readErr, err)
		}
		if err != nil {
			i.fail(r, err)
		}

		if handlerPanic != nil {
			panic(handlerPanic)
		}
	})
}

// serve runs the handler and returns its panic value, if any, so the request
// is still recorded before the panic continues up the stack.
func serve(next http.Handler, w http.ResponseWriter, r *http.Request) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	next.ServeHTTP(w, r)
	return nil
}

func (i *Interceptor) readBody(r *http.Request) (body *extractor.CapturedBody, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			body, err = nil, fmt.Errorf("reading request body panicked: %v", rec)
		}
	}()
	return i.extractor.ReadRequestBody(r)
}

// record extracts and writes the record. It never panics.
func (i *Interceptor) record(r *http.Request, reqBody *extractor.CapturedBody, resp *extractor.Response, started time.Time, elapsed time.Duration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("audit logging panicked: %v", rec)
		}
	}()

	rec := i.extractor.Extract(r, reqBody, resp, started, elapsed)

	// The client may be gone; the record is still written.
	ctx := context.WithoutCancel(r.Context())
	writeStart := time.Now()
	err = i.writer.WriteRequest(ctx, rec)
	if !i.opts.Async {
		metrics.RecordSinkWrite(i.name, string(audit.LogTypeRequest), time.Since(writeStart), err)
	}
	if err != nil {
		return fmt.Errorf("failed to write request record %s: %w", rec.ID, err)
	}

	outcome := metrics.OutcomeWritten
	if i.opts.Async {
		outcome = metrics.OutcomeQueued
	}
	metrics.RecordOutcome(string(audit.LogTypeRequest), outcome)
	return nil
}

// fail reports one logging failure.
func (i *Interceptor) fail(r *http.Request, err error) {
	metrics.RecordOutcome(string(audit.LogTypeRequest), metrics.OutcomeFailed)
	logging.Ctx(r.Context()).Error().
		Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Audit logging failed")

	if i.notifier != nil {
		i.notifier.Notify(context.WithoutCancel(r.Context()), err, map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": logging.RequestIDFromContext(r.Context()),
		})
	}

	if i.opts.RaiseExceptions {
		panic(err)
	}
}
