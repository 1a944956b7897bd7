// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Package metrics holds the Prometheus collectors for the audit pipeline.
// Collectors register with the default registry and are served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RecordsTotal.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeQueued  = "queued"
)

var (
	// Pipeline metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_records_total",
			Help: "Audit records by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SinkWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqaudit_sink_write_duration_seconds",
			Help:    "Duration of sink writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink", "kind"},
	)

	SinkWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_sink_write_errors_total",
			Help: "Failed sink writes",
		},
		[]string{"sink", "kind"},
	)

	DualWriteDivergence = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_dual_write_divergence_total",
			Help: "Dual writes where only some sinks stored the record",
		},
		[]string{"kind"},
	)

	// Retention metrics
	CleanupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_cleanup_deleted_total",
			Help: "Records deleted by retention cleanup",
		},
		[]string{"sink", "kind"},
	)

	CleanupBatchRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqaudit_cleanup_batch_rows",
			Help:    "Rows affected per cleanup batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"sink", "kind"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reqaudit_sweep_duration_seconds",
			Help:    "Duration of retention sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqaudit_sweep_errors_total",
			Help: "Retention sweeps that ended with an error",
		},
	)

	// Access-log capture
	AccessLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqaudit_accesslog_dropped_total",
			Help: "Access-log entries dropped because the buffer was full",
		},
	)

	AccessLogQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqaudit_accesslog_queue_depth",
			Help: "Access-log entries waiting to be written",
		},
	)

	// Async dispatch
	QueuePublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_queue_publish_total",
			Help: "Records published to the durable queue by result",
		},
		[]string{"topic", "result"},
	)

	QueueConsumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_queue_consume_total",
			Help: "Queued records consumed by result",
		},
		[]string{"topic", "result"},
	)

	// Failure notifier
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqaudit_notifications_total",
			Help: "Failure notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	// HTTP server
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqaudit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by this process",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reqaudit_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordOutcome counts one record outcome.
func RecordOutcome(kind, outcome string) {
	RecordsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSinkWrite records the duration and result of one sink write.
func RecordSinkWrite(sink, kind string, duration time.Duration, err error) {
	SinkWriteDuration.WithLabelValues(sink, kind).Observe(duration.Seconds())
	if err != nil {
		SinkWriteErrors.WithLabelValues(sink, kind).Inc()
	}
}

// RecordCleanupBatch records one cleanup batch.
func RecordCleanupBatch(sink, kind string, rows int64) {
	CleanupBatchRows.WithLabelValues(sink, kind).Observe(float64(rows))
	if rows > 0 {
		CleanupDeleted.WithLabelValues(sink, kind).Add(float64(rows))
	}
}

// RecordSweep records one retention sweep.
func RecordSweep(duration time.Duration, err error) {
	SweepDuration.Observe(duration.Seconds())
	if err != nil {
		SweepErrors.Inc()
	}
}

// RecordPublish records one queue publish.
func RecordPublish(topic string, err error) {
	QueuePublishTotal.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordConsume records one consumed queue message.
func RecordConsume(topic string, err error) {
	QueueConsumeTotal.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordNotification records one notifier delivery attempt.
func RecordNotification(channel, result string) {
	NotificationsTotal.WithLabelValues(channel, result).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
