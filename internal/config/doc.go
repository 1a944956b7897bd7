// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package config provides centralized configuration management for reqaudit.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH, ./config.yaml or /etc/reqaudit/config.yaml), then
environment variables. Load validates the result and returns an immutable
Config.

# Environment Variables

Interception (AuditLoggerConfig):
  - AUDIT_LOGGER_ENABLED: Master switch (default: true)
  - AUDIT_LOGGER_LOG_REQUEST_BODY / AUDIT_LOGGER_LOG_RESPONSE_BODY (default: true)
  - AUDIT_LOGGER_EXCLUDE_PATHS: Comma-separated path prefixes
  - AUDIT_LOGGER_EXCLUDE_EXTENSIONS: Comma-separated extensions
  - AUDIT_LOGGER_MAX_BODY_LENGTH: Body truncation limit in characters (default: 8192)
  - AUDIT_LOGGER_SENSITIVE_FIELDS: Comma-separated field names to mask
  - AUDIT_LOGGER_USER_ID_HEADER: Header carrying the user id (default: X-User-ID)
  - AUDIT_LOGGER_EXTRA_DATA_HEADERS: Headers copied into extra_data
  - AUDIT_LOGGER_RAISE_EXCEPTIONS: Re-raise logging failures (default: false)
  - AUDIT_LOGGER_ASYNC: Dispatch records through NATS (default: false)

Storage (StorageConfig):
  - AUDIT_LOGGER_STORAGE: relational, document or memory (default: relational)
  - AUDIT_LOGGER_DUAL_WRITE: Write to both stores (default: false)
  - AUDIT_LOGGER_DUCKDB_PATH: DuckDB file (default: /data/reqaudit.duckdb)
  - AUDIT_LOGGER_DOCUMENT_STORE_PATH: BadgerDB directory

Retention (RetentionConfig):
  - AUDIT_LOGGER_RETENTION_DAYS: Request record retention (default: 90)
  - AUDIT_LOGGER_ACCESS_RETENTION_DAYS: Access record retention (default: 120)
  - AUDIT_LOGGER_CLEANUP_BATCH_SIZE: Rows per delete (default: 1000)
  - AUDIT_LOGGER_CLEANUP_INTERVAL: Scheduled sweep interval (default: 24h)

Notifications (NotifierConfig):
  - AUDIT_LOGGER_NOTIFY_ENABLED, AUDIT_LOGGER_NOTIFY_TRANSPORT (smtp, webhook, log)
  - AUDIT_LOGGER_ERROR_EMAIL_SENDER, AUDIT_LOGGER_ERROR_EMAIL_RECIPIENTS
  - AUDIT_LOGGER_SMTP_HOST, AUDIT_LOGGER_SMTP_PORT, AUDIT_LOGGER_SMTP_USERNAME, AUDIT_LOGGER_SMTP_PASSWORD

Server, API and logging:
  - HTTP_HOST, HTTP_PORT, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

See envMappings in koanf.go for the complete list.

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	ext := extractor.New(cfg.ExtractorOptions())
	sweeper, err := retention.New(sink, cfg.RetentionOptions())
*/
package config
