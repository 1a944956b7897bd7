// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional config file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: AUDIT_LOGGER_* and a few legacy names
//
// Config is immutable after Load and is converted once into per-component
// option structs (see options.go). No component reads it globally.
type Config struct {
	AuditLogger AuditLoggerConfig `koanf:"audit_logger"`
	Storage     StorageConfig     `koanf:"storage"`
	Queue       QueueConfig       `koanf:"queue"`
	Retention   RetentionConfig   `koanf:"retention"`
	Notifier    NotifierConfig    `koanf:"notifier"`
	AccessLog   AccessLogConfig   `koanf:"access_log"`
	Server      ServerConfig      `koanf:"server"`
	API         APIConfig         `koanf:"api"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// AuditLoggerConfig controls request interception and field extraction.
type AuditLoggerConfig struct {
	Enabled           bool     `koanf:"enabled"`
	LogRequestBody    bool     `koanf:"log_request_body"`
	LogResponseBody   bool     `koanf:"log_response_body"`
	ExcludePaths      []string `koanf:"exclude_paths"`
	ExcludeExtensions []string `koanf:"exclude_extensions"`
	MaxBodyLength     int      `koanf:"max_body_length"`
	SensitiveFields   []string `koanf:"sensitive_fields"`

	// UserIDHeader names the request header carrying the authenticated user,
	// typically set by an upstream proxy. Empty disables user resolution.
	UserIDHeader string `koanf:"user_id_header"`
	// ExtraDataHeaders are copied into each record's extra fields.
	ExtraDataHeaders []string `koanf:"extra_data_headers"`

	// RaiseExceptions re-raises logging failures. Debug only.
	RaiseExceptions bool `koanf:"raise_exceptions"`
	// Async hands records to the queue instead of writing them inline.
	Async bool `koanf:"async"`
}

// Storage backends.
const (
	BackendRelational = "relational"
	BackendDocument   = "document"
	BackendMemory     = "memory"
)

// StorageConfig selects and configures the sinks.
type StorageConfig struct {
	// Backend is the primary sink: relational, document or memory.
	Backend string `koanf:"backend"`
	// DualWrite writes every record to both the relational and document
	// sinks. Backend then selects the sink the admin views read from.
	DualWrite bool `koanf:"dual_write"`

	DuckDB   DuckDBConfig   `koanf:"duckdb"`
	Document DocumentConfig `koanf:"document"`
}

// DuckDBConfig configures the relational sink.
type DuckDBConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// DocumentConfig configures the BadgerDB document sink.
type DocumentConfig struct {
	Path        string `koanf:"path"`
	SyncWrites  bool   `koanf:"sync_writes"`
	Compression bool   `koanf:"compression"`
}

// QueueConfig configures async dispatch over NATS JetStream.
type QueueConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	RequestTopic string `koanf:"request_topic"`
	AccessTopic  string `koanf:"access_topic"`
	PoisonTopic  string `koanf:"poison_topic"`

	// Consumer is false on web-only processes that publish but never
	// write to the sinks.
	Consumer         bool          `koanf:"consumer"`
	SubscribersCount int           `koanf:"subscribers_count"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`

	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// RetentionConfig configures the retention sweeper.
type RetentionConfig struct {
	RequestDays int `koanf:"request_days"`
	AccessDays  int `koanf:"access_days"`
	BatchSize   int `koanf:"batch_size"`

	// Scheduled runs the sweeper inside the server every Interval.
	Scheduled  bool          `koanf:"scheduled"`
	Interval   time.Duration `koanf:"interval"`
	RunOnStart bool          `koanf:"run_on_start"`
}

// Notifier transports.
const (
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
	TransportLog     = "log"
)

// NotifierConfig configures failure notifications.
type NotifierConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Transport      string        `koanf:"transport"`
	Sender         string        `koanf:"sender"`
	Recipients     []string      `koanf:"recipients"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	ThrottleWindow time.Duration `koanf:"throttle_window"`
	SendTimeout    time.Duration `koanf:"send_timeout"`

	SMTP       SMTPConfig `koanf:"smtp"`
	WebhookURL string     `koanf:"webhook_url"`
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`
}

// AccessLogConfig configures server-level access capture.
type AccessLogConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BufferSize   int           `koanf:"buffer_size"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// IngestFile is an access log in combined format imported at startup.
	IngestFile string `koanf:"ingest_file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// APIConfig holds admin API pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds rate limiting and CORS settings for the admin API.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
