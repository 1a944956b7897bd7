// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/reqaudit/internal/api"
	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/config"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/queue"
)

// asyncPipeline holds the NATS-backed dispatch components.
type asyncPipeline struct {
	server     *queue.EmbeddedServer
	publisher  *queue.Publisher
	subscriber message.Subscriber
	consumer   *queue.Consumer
}

// initQueue starts the embedded broker when configured, then builds the
// publisher and, when this process consumes, the consumer writing to sink.
func initQueue(cfg *config.Config, sink audit.Sink, notifier queue.Notifier) (*asyncPipeline, error) {
	p := &asyncPipeline{}
	ready := false
	defer func() {
		if !ready {
			p.Close(context.Background())
		}
	}()

	var err error

	qcfg := cfg.QueueOptions()
	if cfg.Queue.EmbeddedServer {
		p.server, err = queue.StartEmbeddedServer(cfg.QueueServerOptions())
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		qcfg.URL = p.server.ClientURL()
	}

	logger := queue.NewLogger()
	wmPub, err := queue.NewNATSPublisher(qcfg, logger)
	if err != nil {
		return nil, err
	}
	p.publisher, err = queue.NewPublisher(wmPub, qcfg)
	if err != nil {
		_ = wmPub.Close()
		return nil, err
	}

	if cfg.Queue.Consumer {
		p.subscriber, err = queue.NewNATSSubscriber(qcfg, logger)
		if err != nil {
			return nil, err
		}
		// Poisoned messages go out through the same connection.
		p.consumer, err = queue.NewConsumer(p.subscriber, wmPub, sink, notifier, qcfg, logger)
		if err != nil {
			return nil, err
		}
	}

	logging.Info().
		Str("url", qcfg.URL).
		Bool("embedded", p.server != nil).
		Bool("consumer", p.consumer != nil).
		Msg("Async audit dispatch enabled")
	ready = true
	return p, nil
}

// healthChecks reports broker liveness when the broker runs in process.
func (p *asyncPipeline) healthChecks() []api.HealthCheck {
	if p.server == nil {
		return nil
	}
	return []api.HealthCheck{{
		Name: "nats",
		Check: func(context.Context) error {
			if !p.server.Running() {
				return errors.New("embedded NATS server is not running")
			}
			return nil
		},
	}}
}

// Close stops publishing first and shuts the broker down last.
func (p *asyncPipeline) Close(ctx context.Context) {
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing queue publisher")
		}
	}
	if p.subscriber != nil {
		if err := p.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing queue subscriber")
		}
	}
	if p.server != nil {
		if err := p.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS")
		}
	}
}
