// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// ErrNoRecipients is returned by New when notifications are enabled without
// any recipient.
var ErrNoRecipients = errors.New("failure notifications require at least one recipient")

// Delivery results recorded in metrics.
const (
	resultSent      = "sent"
	resultFailed    = "failed"
	resultThrottled = "throttled"
	resultDisabled  = "disabled"
)

// maxThrottleKeys bounds the throttle table. It is reset when full.
const maxThrottleKeys = 1024

// Options configures a Notifier.
type Options struct {
	// Enabled turns delivery on. A disabled notifier only writes the
	// fallback log line.
	Enabled bool
	// Sender is the alert's From address.
	Sender string
	// Recipients receive every alert.
	Recipients []string
	// SubjectPrefix is prepended to every subject.
	SubjectPrefix string
	// ThrottleWindow suppresses repeats of the same failure inside the
	// window. Zero disables throttling.
	ThrottleWindow time.Duration
	// SendTimeout bounds one transport call.
	SendTimeout time.Duration
}

// DefaultOptions returns the production defaults. Delivery stays disabled
// until recipients are configured.
func DefaultOptions() Options {
	return Options{
		SubjectPrefix:  "[reqaudit]",
		ThrottleWindow: 5 * time.Minute,
		SendTimeout:    30 * time.Second,
	}
}

// Notifier forwards pipeline failures to a Transport. Notify never blocks
// on delivery and never panics.
type Notifier struct {
	transport Transport
	opts      Options
	breaker   *gobreaker.CircuitBreaker[struct{}]
	hostname  string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	inflight sync.WaitGroup
}

// New creates a Notifier. A nil transport falls back to LogTransport.
func New(t Transport, opts Options) (*Notifier, error) {
	if opts.Enabled && len(opts.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultOptions().SendTimeout
	}
	if t == nil {
		t = LogTransport{}
	}
	hostname, _ := os.Hostname() //nolint:errcheck // hostname is informational

	n := &Notifier{
		transport: t,
		opts:      opts,
		hostname:  hostname,
		limiters:  make(map[string]*rate.Limiter),
	}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notify-" + t.Name(),
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("state", to.String()).Msg("Notifier circuit breaker changed state")
		},
	})
	return n, nil
}

// Notify reports err with the given context fields. Delivery happens on a
// separate goroutine; failures are logged locally and dropped.
func (n *Notifier) Notify(ctx context.Context, err error, fields map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("panic", fmt.Sprint(r)).Msg("Failure notifier panicked")
		}
	}()
	if err == nil {
		return
	}

	alert := BuildAlert(err, fields, n.opts)
	alert.Hostname = n.hostname
	if id := logging.RequestIDFromContext(ctx); id != "" {
		alert.RequestID = id
	}

	if !n.opts.Enabled {
		metrics.RecordNotification(n.transport.Name(), resultDisabled)
		fallback(alert, nil)
		return
	}
	if !n.allow(alert) {
		metrics.RecordNotification(n.transport.Name(), resultThrottled)
		fallback(alert, nil)
		return
	}

	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		n.deliver(ctx, alert)
	}()
}

func (n *Notifier) deliver(ctx context.Context, alert *Alert) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordNotification(n.transport.Name(), resultFailed)
			fallback(alert, fmt.Errorf("transport panicked: %v", r))
		}
	}()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.opts.SendTimeout)
	defer cancel()

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.transport.Send(sendCtx, alert)
	})
	if err != nil {
		metrics.RecordNotification(n.transport.Name(), resultFailed)
		fallback(alert, err)
		return
	}
	metrics.RecordNotification(n.transport.Name(), resultSent)
}

// allow applies the per-failure throttle.
func (n *Notifier) allow(alert *Alert) bool {
	if n.opts.ThrottleWindow <= 0 {
		return true
	}
	key := alert.ExceptionType + "\x00" + alert.Message

	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[key]
	if !ok {
		if len(n.limiters) >= maxThrottleKeys {
			n.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rate.Every(n.opts.ThrottleWindow), 1)
		n.limiters[key] = l
	}
	return l.Allow()
}

// Wait blocks until every in-flight delivery has finished.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

// Close waits for in-flight deliveries. It implements io.Closer.
func (n *Notifier) Close() error {
	n.Wait()
	return nil
}

// fallback writes the local log line for an alert that was not delivered.
func fallback(alert *Alert, sendErr error) {
	event := logging.Error().
		Str("exception_type", alert.ExceptionType).
		Str("alert_message", alert.Message).
		Interface("context", alert.Context)
	if alert.RequestID != "" {
		event = event.Str("request_id", alert.RequestID)
	}
	if sendErr != nil {
		event = event.AnErr("send_error", sendErr)
	}
	event.Msg("Audit pipeline failure")
}

// captureStack returns the current goroutine's stack.
func captureStack() string {
	return string(debug.Stack())
}
