// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/reqaudit/internal/extractor"
	"github.com/tomtom215/reqaudit/internal/masking"
	"github.com/tomtom215/reqaudit/internal/queue"
	"github.com/tomtom215/reqaudit/internal/retention"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reqaudit/config.yaml",
	"/etc/reqaudit/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	q := queue.DefaultConfig()
	qs := queue.DefaultServerConfig()

	return &Config{
		AuditLogger: AuditLoggerConfig{
			Enabled:           true,
			LogRequestBody:    true,
			LogResponseBody:   true,
			ExcludePaths:      append([]string(nil), extractor.DefaultExcludePaths...),
			ExcludeExtensions: append([]string(nil), extractor.DefaultExcludeExtensions...),
			MaxBodyLength:     extractor.DefaultMaxBodyLength,
			SensitiveFields:   append([]string(nil), masking.DefaultSensitiveFields...),
			UserIDHeader:      "X-User-ID",
			ExtraDataHeaders:  []string{},
			RaiseExceptions:   false,
			Async:             false,
		},
		Storage: StorageConfig{
			Backend:   BackendRelational,
			DualWrite: false,
			DuckDB: DuckDBConfig{
				Path:      "/data/reqaudit.duckdb",
				MaxMemory: "1GB",
				Threads:   0,
			},
			Document: DocumentConfig{
				Path:        "/data/reqaudit/documents",
				SyncWrites:  false,
				Compression: true,
			},
		},
		Queue: QueueConfig{
			URL:                  q.URL,
			EmbeddedServer:       true,
			StoreDir:             qs.StoreDir,
			MaxMemory:            qs.JetStreamMaxMem,
			MaxStore:             qs.JetStreamMaxStore,
			RequestTopic:         q.RequestTopic,
			AccessTopic:          q.AccessTopic,
			PoisonTopic:          q.PoisonTopic,
			Consumer:             true,
			SubscribersCount:     q.SubscribersCount,
			DurableName:          q.DurableName,
			QueueGroup:           q.QueueGroup,
			AckWaitTimeout:       q.AckWaitTimeout,
			RetryMaxRetries:      q.RetryMaxRetries,
			RetryInitialInterval: q.RetryInitialInterval,
			RetryMaxInterval:     q.RetryMaxInterval,
			CloseTimeout:         q.CloseTimeout,
		},
		Retention: RetentionConfig{
			RequestDays: retention.DefaultRequestDays,
			AccessDays:  retention.DefaultAccessDays,
			BatchSize:   retention.DefaultBatchSize,
			Scheduled:   true,
			Interval:    24 * time.Hour,
			RunOnStart:  false,
		},
		Notifier: NotifierConfig{
			Enabled:        false,
			Transport:      TransportSMTP,
			Sender:         "",
			Recipients:     []string{},
			SubjectPrefix:  "[reqaudit]",
			ThrottleWindow: 5 * time.Minute,
			SendTimeout:    30 * time.Second,
			SMTP: SMTPConfig{
				Port:   587,
				UseTLS: true,
			},
		},
		AccessLog: AccessLogConfig{
			Enabled:      true,
			BufferSize:   1024,
			WriteTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// AUDIT_LOGGER_MAX_BODY_LENGTH -> audit_logger.max_body_length
	// AUDIT_LOGGER_DUCKDB_PATH -> storage.duckdb.path
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"audit_logger.exclude_paths",
	"audit_logger.exclude_extensions",
	"audit_logger.sensitive_fields",
	"audit_logger.extra_data_headers",
	"notifier.recipients",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings but the config expects slices. An empty string
// clears the list.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (defaults or YAML)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Interception and extraction
	"audit_logger_enabled":            "audit_logger.enabled",
	"audit_logger_log_request_body":   "audit_logger.log_request_body",
	"audit_logger_log_response_body":  "audit_logger.log_response_body",
	"audit_logger_exclude_paths":      "audit_logger.exclude_paths",
	"audit_logger_exclude_extensions": "audit_logger.exclude_extensions",
	"audit_logger_max_body_length":    "audit_logger.max_body_length",
	"audit_logger_sensitive_fields":   "audit_logger.sensitive_fields",
	"audit_logger_user_id_header":     "audit_logger.user_id_header",
	"audit_logger_extra_data_headers": "audit_logger.extra_data_headers",
	"audit_logger_raise_exceptions":   "audit_logger.raise_exceptions",
	"audit_logger_async":              "audit_logger.async",

	// Storage
	"audit_logger_storage":              "storage.backend",
	"audit_logger_dual_write":           "storage.dual_write",
	"audit_logger_duckdb_path":          "storage.duckdb.path",
	"audit_logger_duckdb_max_memory":    "storage.duckdb.max_memory",
	"audit_logger_duckdb_threads":       "storage.duckdb.threads",
	"audit_logger_document_store_path":  "storage.document.path",
	"audit_logger_document_sync_writes": "storage.document.sync_writes",
	"duckdb_path":                       "storage.duckdb.path",
	"duckdb_max_memory":                 "storage.duckdb.max_memory",

	// Queue
	"audit_logger_nats_url":             "queue.url",
	"audit_logger_nats_embedded":        "queue.embedded_server",
	"audit_logger_nats_store_dir":       "queue.store_dir",
	"audit_logger_nats_max_memory":      "queue.max_memory",
	"audit_logger_nats_max_store":       "queue.max_store",
	"audit_logger_queue_consumer":       "queue.consumer",
	"audit_logger_queue_subscribers":    "queue.subscribers_count",
	"audit_logger_queue_durable_name":   "queue.durable_name",
	"audit_logger_queue_group":          "queue.queue_group",
	"audit_logger_queue_max_retries":    "queue.retry_max_retries",
	"audit_logger_queue_retry_delay":    "queue.retry_initial_interval",
	"audit_logger_queue_retry_max":      "queue.retry_max_interval",
	"audit_logger_queue_poison_topic":   "queue.poison_topic",
	"audit_logger_queue_close_timeout":  "queue.close_timeout",
	"audit_logger_queue_ack_wait":       "queue.ack_wait_timeout",
	"nats_url":                          "queue.url",
	"nats_embedded":                     "queue.embedded_server",
	"nats_store_dir":                    "queue.store_dir",

	// Retention
	"audit_logger_retention_days":        "retention.request_days",
	"audit_logger_access_retention_days": "retention.access_days",
	"audit_logger_cleanup_batch_size":    "retention.batch_size",
	"audit_logger_cleanup_scheduled":     "retention.scheduled",
	"audit_logger_cleanup_interval":      "retention.interval",
	"audit_logger_cleanup_run_on_start":  "retention.run_on_start",

	// Failure notifications
	"audit_logger_notify_enabled":         "notifier.enabled",
	"audit_logger_notify_transport":       "notifier.transport",
	"audit_logger_error_email_sender":     "notifier.sender",
	"audit_logger_error_email_recipients": "notifier.recipients",
	"audit_logger_notify_subject_prefix":  "notifier.subject_prefix",
	"audit_logger_notify_throttle":        "notifier.throttle_window",
	"audit_logger_notify_timeout":         "notifier.send_timeout",
	"audit_logger_notify_webhook_url":     "notifier.webhook_url",
	"audit_logger_smtp_host":              "notifier.smtp.host",
	"audit_logger_smtp_port":              "notifier.smtp.port",
	"audit_logger_smtp_username":          "notifier.smtp.username",
	"audit_logger_smtp_password":          "notifier.smtp.password",
	"audit_logger_smtp_use_tls":           "notifier.smtp.use_tls",

	// Access log capture
	"audit_logger_access_log_enabled":       "access_log.enabled",
	"audit_logger_access_log_buffer_size":   "access_log.buffer_size",
	"audit_logger_access_log_write_timeout": "access_log.write_timeout",
	"audit_logger_access_log_ingest_file":   "access_log.ingest_file",

	// Server mappings
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// API mappings
	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	// Security mappings
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - AUDIT_LOGGER_EXCLUDE_PATHS -> audit_logger.exclude_paths
//   - AUDIT_LOGGER_ERROR_EMAIL_RECIPIENTS -> notifier.recipients
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
