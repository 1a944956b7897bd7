// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Command server runs the reqaudit HTTP audit-logging service.

It serves a demo application under /app, read-only views over the stored
records under /api/v1/logs, health probes and Prometheus metrics. Every
route runs behind the audit interceptor.

# Startup

 1. Configuration: Koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. Storage: DuckDB, BadgerDB, both (dual write) or memory
 4. Notifier: SMTP, webhook or log transport for pipeline failures
 5. Async dispatch (AUDIT_LOGGER_ASYNC): embedded or external NATS
    JetStream via Watermill, with an in-process consumer
 6. Supervisor tree: access-log adapter, queue consumer, retention
    scheduler, access-log ingest, HTTP server

# Shutdown

SIGINT or SIGTERM cancels the tree. The HTTP server drains in-flight
requests, the access-log adapter drains its buffer, then the publisher,
the broker, the notifier and the stores are closed in that order.

# Example

	AUDIT_LOGGER_STORAGE=memory HTTP_PORT=8080 ./server
	curl -X POST localhost:8080/app/login -d '{"username":"a","password":"b"}' -H 'Content-Type: application/json'
	curl localhost:8080/api/v1/logs/requests
*/
package main
