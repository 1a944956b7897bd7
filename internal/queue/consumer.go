// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// Notifier receives records that could not be written after all retries.
type Notifier interface {
	Notify(ctx context.Context, err error, fields map[string]any)
}

// Consumer is the worker side of async dispatch: it reads queued records
// and writes them to a Sink. It implements suture.Service.
type Consumer struct {
	subscriber message.Subscriber
	poison     message.Publisher
	sink       audit.Sink
	notifier   Notifier
	cfg        Config
	logger     watermill.LoggerAdapter
}

// NewConsumer creates a Consumer. poison and notifier may be nil; without
// a poison publisher a message that exhausts its retries is nacked and
// redelivered by the broker.
func NewConsumer(sub message.Subscriber, poison message.Publisher, sink audit.Sink, notifier Notifier, cfg Config, logger watermill.LoggerAdapter) (*Consumer, error) {
	if sub == nil {
		return nil, errors.New("watermill subscriber is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewLogger()
	}
	return &Consumer{
		subscriber: sub,
		poison:     poison,
		sink:       sink,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// newRouter builds the Watermill router. Middleware order, outermost
// first: poison queue, failure notification, retry, recoverer.
func (c *Consumer) newRouter() (*message.Router, error) {
	closeTimeout := c.cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = DefaultConfig().CloseTimeout
	}
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	if c.poison != nil && c.cfg.PoisonTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(c.poison, c.cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(poisonQueue)
	}
	router.AddMiddleware(c.notifyOnFailure)

	retry := middleware.Retry{
		MaxRetries:      c.cfg.RetryMaxRetries,
		InitialInterval: c.cfg.RetryInitialInterval,
		MaxInterval:     c.cfg.RetryMaxInterval,
		Multiplier:      c.cfg.RetryMultiplier,
		Logger:          c.logger,
	}
	router.AddMiddleware(retry.Middleware)
	router.AddMiddleware(middleware.Recoverer)

	router.AddConsumerHandler("write-request-records", c.cfg.RequestTopic, c.subscriber, c.handleRequest)
	router.AddConsumerHandler("write-access-records", c.cfg.AccessTopic, c.subscriber, c.handleAccess)
	return router, nil
}

// Serve runs the router until ctx is done.
func (c *Consumer) Serve(ctx context.Context) error {
	router, err := c.newRouter()
	if err != nil {
		return err
	}
	logging.Info().
		Str("request_topic", c.cfg.RequestTopic).
		Str("access_topic", c.cfg.AccessTopic).
		Msg("Queue consumer started")

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("queue consumer: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (c *Consumer) String() string { return "queue-consumer" }

func (c *Consumer) handleRequest(msg *message.Message) error {
	rec, err := decodeRequest(msg)
	if err != nil {
		return c.reject(msg, c.cfg.RequestTopic, err)
	}
	return c.write(msg, c.cfg.RequestTopic, audit.LogTypeRequest, func(ctx context.Context) error {
		return c.sink.WriteRequest(ctx, rec)
	})
}

func (c *Consumer) handleAccess(msg *message.Message) error {
	rec, err := decodeAccess(msg)
	if err != nil {
		return c.reject(msg, c.cfg.AccessTopic, err)
	}
	return c.write(msg, c.cfg.AccessTopic, audit.LogTypeAccess, func(ctx context.Context) error {
		return c.sink.WriteAccess(ctx, rec)
	})
}

func (c *Consumer) write(msg *message.Message, topic string, logType audit.LogType, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(msg.Context())
	metrics.RecordSinkWrite(c.sink.Name(), string(logType), time.Since(start), err)
	metrics.RecordConsume(topic, err)
	if err != nil {
		return fmt.Errorf("write %s record %s: %w", logType, msg.UUID, err)
	}
	metrics.RecordOutcome(string(logType), metrics.OutcomeWritten)
	return nil
}

// reject routes an undecodable message straight to the poison topic;
// retrying it cannot succeed.
func (c *Consumer) reject(msg *message.Message, topic string, err error) error {
	metrics.RecordConsume(topic, err)
	logging.Error().Err(err).Str("topic", topic).Str("message_id", msg.UUID).Msg("Dropping malformed queue message")
	c.report(msg, err)

	if c.poison == nil || c.cfg.PoisonTopic == "" {
		return nil
	}
	poisoned := msg.Copy()
	poisoned.Metadata.Set(middleware.ReasonForPoisonedKey, err.Error())
	if pubErr := c.poison.Publish(c.cfg.PoisonTopic, poisoned); pubErr != nil {
		return fmt.Errorf("publish malformed message to poison topic: %w", pubErr)
	}
	return nil
}

// notifyOnFailure reports a message whose retries are exhausted.
func (c *Consumer) notifyOnFailure(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			metrics.RecordOutcome(msg.Metadata.Get(metadataLogType), metrics.OutcomeFailed)
			logging.Error().Err(err).Str("message_id", msg.UUID).Msg("Queued record could not be written")
			c.report(msg, err)
		}
		return out, err
	}
}

func (c *Consumer) report(msg *message.Message, err error) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(context.Background(), err, map[string]any{
		"component":  c.String(),
		"message_id": msg.UUID,
		"log_type":   msg.Metadata.Get(metadataLogType),
	})
}
