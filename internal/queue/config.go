// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package queue

import (
	"errors"
	"time"
)

// Topics. JetStream stream names cannot contain dots, so neither can these.
const (
	DefaultRequestTopic = "audit_requests"
	DefaultAccessTopic  = "audit_access"
	DefaultPoisonTopic  = "audit_poison"
)

// Config configures async dispatch.
type Config struct {
	// URL of the NATS server.
	URL string

	RequestTopic string
	AccessTopic  string
	PoisonTopic  string

	// Consumer settings
	SubscribersCount int
	QueueGroup       string
	DurableName      string
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration

	// Retry policy for failed sink writes before a message is poisoned.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// Reconnection
	MaxReconnects int
	ReconnectWait time.Duration

	// Circuit breaker around publish
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// DefaultConfig returns the production defaults: three retries starting at
// one minute.
func DefaultConfig() Config {
	return Config{
		URL:                     "nats://127.0.0.1:4222",
		RequestTopic:            DefaultRequestTopic,
		AccessTopic:             DefaultAccessTopic,
		PoisonTopic:             DefaultPoisonTopic,
		SubscribersCount:        2,
		QueueGroup:              "reqaudit",
		DurableName:             "reqaudit-writer",
		AckWaitTimeout:          30 * time.Second,
		CloseTimeout:            30 * time.Second,
		RetryMaxRetries:         3,
		RetryInitialInterval:    60 * time.Second,
		RetryMaxInterval:        10 * time.Minute,
		RetryMultiplier:         2.0,
		MaxReconnects:           -1,
		ReconnectWait:           2 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// Validate checks the topics and retry policy.
func (c Config) Validate() error {
	if c.RequestTopic == "" || c.AccessTopic == "" {
		return errors.New("queue topics are required")
	}
	if c.RequestTopic == c.AccessTopic {
		return errors.New("request and access topics must differ")
	}
	if c.RetryMaxRetries < 0 {
		return errors.New("retry count cannot be negative")
	}
	return nil
}
