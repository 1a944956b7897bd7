// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package middleware provides the HTTP interception layer of the audit
pipeline and the supporting infrastructure middleware.

Key Components:

  - Interceptor: records one audit entry per request through a Writer
  - RequestID: request id propagation for log correlation
  - HTTPMetrics: Prometheus request instrumentation
  - Gzip: response compression for the admin API

Interceptor Lifecycle:

Each request moves through:

	BEFORE_REQUEST -> handler -> AFTER_RESPONSE -> WRITTEN | QUEUED | SKIPPED | FAILED

A request is SKIPPED when auditing is disabled or its path is excluded; the
exclusion check runs before the body is touched. After the handler returns,
the record is extracted and handed to the Writer. Any error or panic in
extraction or writing is counted, reported once to the Notifier and
swallowed, so the client receives the handler's response unchanged. Setting
RaiseExceptions re-panics instead; it is meant for tests and debugging.

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(middleware.HTTPMetrics)
	r.Use(interceptor.Handler)

RequestID must run first so the audit record and every log line for the
request share one request id. Gzip goes inside the Interceptor when both are
used, so recorded response bodies are uncompressed.

Thread Safety:

All middleware is safe for concurrent use. The Interceptor holds no mutable
state; concurrency of writes is the Writer's responsibility.
*/
package middleware
