// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package config

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/tomtom215/reqaudit/internal/logging"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateAuditLogger(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateQueue(); err != nil {
		return err
	}

	if err := c.validateRetention(); err != nil {
		return err
	}

	if err := c.validateNotifier(); err != nil {
		return err
	}

	if err := c.validateAccessLog(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateAuditLogger() error {
	if c.AuditLogger.MaxBodyLength <= 0 {
		return fmt.Errorf("AUDIT_LOGGER_MAX_BODY_LENGTH must be positive, got %d", c.AuditLogger.MaxBodyLength)
	}
	for _, ext := range c.AuditLogger.ExcludeExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("AUDIT_LOGGER_EXCLUDE_EXTENSIONS entries must start with a dot, got %q", ext)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendRelational, BackendDocument:
	case BackendMemory:
		if c.Storage.DualWrite {
			return fmt.Errorf("AUDIT_LOGGER_DUAL_WRITE requires a relational or document primary, got %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("AUDIT_LOGGER_STORAGE must be one of relational, document, memory; got %q", c.Storage.Backend)
	}

	if c.usesRelational() && c.Storage.DuckDB.Path == "" {
		return fmt.Errorf("AUDIT_LOGGER_DUCKDB_PATH is required for relational storage")
	}
	if c.usesDocument() && c.Storage.Document.Path == "" {
		return fmt.Errorf("AUDIT_LOGGER_DOCUMENT_STORE_PATH is required for document storage")
	}
	if c.Storage.DuckDB.Threads < 0 {
		return fmt.Errorf("AUDIT_LOGGER_DUCKDB_THREADS cannot be negative")
	}
	return nil
}

func (c *Config) usesRelational() bool {
	return c.Storage.Backend == BackendRelational || c.Storage.DualWrite
}

func (c *Config) usesDocument() bool {
	return c.Storage.Backend == BackendDocument || c.Storage.DualWrite
}

// validateQueue validates queue settings (only if async dispatch is on)
func (c *Config) validateQueue() error {
	if !c.AuditLogger.Async {
		return nil
	}
	q := c.Queue
	if err := validateNATSURL(q.URL); err != nil {
		return fmt.Errorf("AUDIT_LOGGER_NATS_URL is invalid: %w", err)
	}
	if q.EmbeddedServer && q.StoreDir == "" {
		return fmt.Errorf("AUDIT_LOGGER_NATS_STORE_DIR is required for the embedded server")
	}
	if err := c.QueueOptions().Validate(); err != nil {
		return err
	}
	if q.PoisonTopic == q.RequestTopic || q.PoisonTopic == q.AccessTopic {
		return fmt.Errorf("poison topic must differ from the record topics")
	}
	if q.Consumer && q.SubscribersCount < 1 {
		return fmt.Errorf("AUDIT_LOGGER_QUEUE_SUBSCRIBERS must be at least 1, got %d", q.SubscribersCount)
	}
	return nil
}

func (c *Config) validateRetention() error {
	if err := c.RetentionOptions().Validate(); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	if c.Retention.Scheduled && c.Retention.Interval <= 0 {
		return fmt.Errorf("AUDIT_LOGGER_CLEANUP_INTERVAL must be positive when scheduled")
	}
	return nil
}

// validateNotifier validates notifier settings (only if enabled)
func (c *Config) validateNotifier() error {
	n := c.Notifier
	if !n.Enabled {
		return nil
	}
	if len(n.Recipients) == 0 {
		return fmt.Errorf("AUDIT_LOGGER_ERROR_EMAIL_RECIPIENTS is required when notifications are enabled")
	}

	switch n.Transport {
	case TransportSMTP:
		if _, err := mail.ParseAddress(n.Sender); err != nil {
			return fmt.Errorf("AUDIT_LOGGER_ERROR_EMAIL_SENDER is invalid: %w", err)
		}
		for _, r := range n.Recipients {
			if _, err := mail.ParseAddress(r); err != nil {
				return fmt.Errorf("AUDIT_LOGGER_ERROR_EMAIL_RECIPIENTS entry %q is invalid: %w", r, err)
			}
		}
		if n.SMTP.Host == "" {
			return fmt.Errorf("AUDIT_LOGGER_SMTP_HOST is required for the smtp transport")
		}
		if n.SMTP.Port < 1 || n.SMTP.Port > 65535 {
			return fmt.Errorf("AUDIT_LOGGER_SMTP_PORT must be between 1 and 65535, got %d", n.SMTP.Port)
		}
	case TransportWebhook:
		if err := validateHTTPURL(n.WebhookURL, "AUDIT_LOGGER_NOTIFY_WEBHOOK_URL"); err != nil {
			return err
		}
	case TransportLog:
	default:
		return fmt.Errorf("AUDIT_LOGGER_NOTIFY_TRANSPORT must be one of smtp, webhook, log; got %q", n.Transport)
	}
	return nil
}

func (c *Config) validateAccessLog() error {
	if c.AccessLog.Enabled && c.AccessLog.BufferSize < 1 {
		return fmt.Errorf("AUDIT_LOGGER_ACCESS_LOG_BUFFER_SIZE must be at least 1, got %d", c.AccessLog.BufferSize)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API page sizes are invalid: default %d, max %d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if !c.Security.RateLimitDisabled && (c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit must allow at least 1 request per positive window")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
