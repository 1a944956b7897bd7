// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// ErrPublisherClosed is returned by writes after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher enqueues records instead of writing them. It satisfies the
// interception middleware's and the access-log adapter's writer
// interfaces, so either can be switched to async dispatch.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	cfg       Config

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps a Watermill publisher with a circuit breaker.
func NewPublisher(pub message.Publisher, cfg Config) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("watermill publisher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = DefaultConfig().BreakerFailureThreshold
	}

	p := &Publisher{publisher: pub, cfg: cfg}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "queue-publish",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("state", to.String()).Msg("Queue circuit breaker changed state")
		},
	})
	return p, nil
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string { return "queue" }

// WriteRequest publishes a request record.
func (p *Publisher) WriteRequest(ctx context.Context, rec *audit.RequestRecord) error {
	if rec == nil {
		return audit.ErrNilRecord
	}
	msg, err := encode(audit.LogTypeRequest, rec.ID, rec)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.cfg.RequestTopic, msg)
}

// WriteAccess publishes an access record.
func (p *Publisher) WriteAccess(ctx context.Context, rec *audit.AccessRecord) error {
	if rec == nil {
		return audit.ErrNilRecord
	}
	msg, err := encode(audit.LogTypeAccess, rec.ID, rec)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.cfg.AccessTopic, msg)
}

func (p *Publisher) publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	metrics.RecordPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
