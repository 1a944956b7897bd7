// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package api provides the HTTP surface of reqaudit: read-only views over
stored audit records, health probes, Prometheus metrics and a small demo
application. The audit interceptor wraps every route; health probes and
/metrics are skipped by the default exclusions.

# Endpoints

	GET /api/v1/health             liveness
	GET /api/v1/health/ready       readiness, 503 when a dependency check fails
	GET /api/v1/logs/requests      request records, newest first
	GET /api/v1/logs/requests/{id} one request record
	GET /api/v1/logs/access        access records, newest first
	GET /metrics                   Prometheus exposition
	*   /app/...                   demo application

List endpoints accept path_prefix, min_status, user_id, since, until
(RFC3339), limit and offset. Parameters are validated with
go-playground/validator; failures return 400 with a VALIDATION_ERROR body.

# Response Format

Every JSON response uses the APIResponse envelope:

	{
	  "success": true,
	  "data": [...],
	  "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3,
	           "pagination": {"total": 120, "count": 50, "offset": 0, "limit": 50, "has_more": true}}
	}

# Middleware

Global: request id, real IP, panic recovery, HTTP metrics and CORS
(go-chi/cors). The log views add per-IP rate limiting (go-chi/httprate),
no-store cache headers and gzip.
*/
package api
