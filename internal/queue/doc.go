// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package queue implements asynchronous dispatch of audit records.

With async dispatch enabled the interception middleware and the access-log
adapter hand records to a Publisher instead of a Sink. The Publisher
serialises each record, uses the record id as the JetStream message id for
duplicate suppression, and publishes it through a circuit breaker. A publish
failure is returned to the caller and handled like a failed sink write.

A Consumer, supervised as its own service, reads the topics through a
Watermill router and writes each record to the Sink:

	poison queue -> failure notification -> retry (3x, 60s backoff) -> recoverer -> handler

A record that still fails after the retries is reported to the Notifier and
moved to the poison topic. Messages that cannot be decoded skip the retries
and go straight to the poison topic.

EmbeddedServer runs a JetStream-enabled NATS server in process for
single-node deployments.
*/
package queue
