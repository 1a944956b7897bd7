// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package notify forwards audit pipeline failures to operators.

The Notifier is called from failure-handling paths of the interception
middleware, the access-log adapter and the queue consumer, so it must never
raise and never hold up a request:

  - Notify builds an Alert (type, message, stack, context, sender,
    recipients) and hands it to a Transport on a separate goroutine.
  - Transport errors and panics are recovered and written as one local
    fallback log line; nothing is returned to the caller.
  - A circuit breaker stops calling a transport that keeps failing.
  - Repeats of the same failure inside ThrottleWindow are suppressed; the
    fallback line is still written for each one.

Transports:

  - SMTPTransport: plain-text email
  - WebhookTransport: JSON POST
  - LogTransport: application log only (default)
*/
package notify
