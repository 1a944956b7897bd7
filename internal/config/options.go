// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package config

import (
	"github.com/tomtom215/reqaudit/internal/accesslog"
	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/extractor"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/middleware"
	"github.com/tomtom215/reqaudit/internal/notify"
	"github.com/tomtom215/reqaudit/internal/queue"
	"github.com/tomtom215/reqaudit/internal/retention"
)

// ExtractorOptions returns the field extractor settings. The user id and
// extra data callbacks are the header-based built-ins; programmatic callers
// replace them before calling extractor.New.
func (c *Config) ExtractorOptions() extractor.Options {
	a := c.AuditLogger
	opts := extractor.Options{
		LogRequestBody:    a.LogRequestBody,
		LogResponseBody:   a.LogResponseBody,
		ExcludePaths:      append([]string(nil), a.ExcludePaths...),
		ExcludeExtensions: append([]string(nil), a.ExcludeExtensions...),
		MaxBodyLength:     a.MaxBodyLength,
		SensitiveFields:   append([]string(nil), a.SensitiveFields...),
	}
	if a.UserIDHeader != "" {
		opts.UserID = extractor.HeaderUserID{Header: a.UserIDHeader}
	}
	if len(a.ExtraDataHeaders) > 0 {
		opts.ExtraData = extractor.HeaderExtraData{Headers: append([]string(nil), a.ExtraDataHeaders...)}
	}
	return opts
}

// MiddlewareOptions returns the interception middleware settings.
func (c *Config) MiddlewareOptions() middleware.Options {
	return middleware.Options{
		Enabled:         c.AuditLogger.Enabled,
		Async:           c.AuditLogger.Async,
		RaiseExceptions: c.AuditLogger.RaiseExceptions,
	}
}

// DuckDBConfig returns the relational sink settings.
func (c *Config) DuckDBConfig() audit.DuckDBConfig {
	d := c.Storage.DuckDB
	return audit.DuckDBConfig{Path: d.Path, MaxMemory: d.MaxMemory, Threads: d.Threads}
}

// DocumentConfig returns the document sink settings.
func (c *Config) DocumentConfig() audit.DocumentConfig {
	cfg := audit.DefaultDocumentConfig()
	cfg.Path = c.Storage.Document.Path
	cfg.SyncWrites = c.Storage.Document.SyncWrites
	cfg.Compression = c.Storage.Document.Compression
	return cfg
}

// DualOptions returns the dual sink settings.
func (c *Config) DualOptions() audit.DualOptions {
	primary := audit.TargetRelational
	if c.Storage.Backend == BackendDocument {
		primary = audit.TargetDocument
	}
	return audit.DualOptions{WriteToBoth: c.Storage.DualWrite, Primary: primary}
}

// QueueOptions returns the async dispatch settings.
func (c *Config) QueueOptions() queue.Config {
	q := c.Queue
	cfg := queue.DefaultConfig()
	cfg.URL = q.URL
	cfg.RequestTopic = q.RequestTopic
	cfg.AccessTopic = q.AccessTopic
	cfg.PoisonTopic = q.PoisonTopic
	cfg.SubscribersCount = q.SubscribersCount
	cfg.DurableName = q.DurableName
	cfg.QueueGroup = q.QueueGroup
	cfg.AckWaitTimeout = q.AckWaitTimeout
	cfg.RetryMaxRetries = q.RetryMaxRetries
	cfg.RetryInitialInterval = q.RetryInitialInterval
	cfg.RetryMaxInterval = q.RetryMaxInterval
	cfg.CloseTimeout = q.CloseTimeout
	return cfg
}

// QueueServerOptions returns the embedded NATS server settings.
func (c *Config) QueueServerOptions() queue.ServerConfig {
	cfg := queue.DefaultServerConfig()
	cfg.StoreDir = c.Queue.StoreDir
	cfg.JetStreamMaxMem = c.Queue.MaxMemory
	cfg.JetStreamMaxStore = c.Queue.MaxStore
	return cfg
}

// RetentionOptions returns the retention sweeper settings.
func (c *Config) RetentionOptions() retention.Options {
	return retention.Options{
		RequestDays: c.Retention.RequestDays,
		AccessDays:  c.Retention.AccessDays,
		BatchSize:   c.Retention.BatchSize,
	}
}

// NotifyOptions returns the failure notifier settings.
func (c *Config) NotifyOptions() notify.Options {
	n := c.Notifier
	return notify.Options{
		Enabled:        n.Enabled,
		Sender:         n.Sender,
		Recipients:     append([]string(nil), n.Recipients...),
		SubjectPrefix:  n.SubjectPrefix,
		ThrottleWindow: n.ThrottleWindow,
		SendTimeout:    n.SendTimeout,
	}
}

// NotifyTransport builds the configured transport. A disabled notifier and
// the log transport both return nil, which the notifier treats as the log
// transport.
func (c *Config) NotifyTransport() (notify.Transport, error) {
	n := c.Notifier
	if !n.Enabled {
		return nil, nil
	}
	switch n.Transport {
	case TransportSMTP:
		t, err := notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     n.SMTP.Host,
			Port:     n.SMTP.Port,
			Username: n.SMTP.Username,
			Password: n.SMTP.Password,
			UseTLS:   n.SMTP.UseTLS,
			Timeout:  n.SendTimeout,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TransportWebhook:
		t, err := notify.NewWebhookTransport(n.WebhookURL, n.SendTimeout)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, nil
	}
}

// AccessLogOptions returns the access-log adapter settings. The notifier
// is wired by the caller.
func (c *Config) AccessLogOptions() accesslog.Options {
	opts := accesslog.DefaultOptions()
	opts.BufferSize = c.AccessLog.BufferSize
	opts.WriteTimeout = c.AccessLog.WriteTimeout
	opts.SensitiveFields = append([]string(nil), c.AuditLogger.SensitiveFields...)
	return opts
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
