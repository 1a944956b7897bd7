// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package audit defines the audit records and the sinks that persist them.

# Records

Two record shapes with independent lifecycles:

  - RequestRecord: one application request/response observed by the
    interception middleware.
  - AccessRecord: one server-level request completion captured by the
    access-log adapter.

Records are immutable once written. Deletion through Cleanup is the only
mutation.

# Sinks

All sinks implement Sink and are safe for concurrent use:

  - DuckDBSink: relational store, one indexed table per record shape
  - DocumentSink: BadgerDB document store, JSON documents under
    time-ordered keys
  - MemorySink: in-process store for development and tests
  - DualSink: fans writes out to a relational and a document sink, or
    selects one of them

# Cleanup

Cleanup deletes records older than a cutoff in batches of at most batchSize
rows each. Every batch is a self-contained statement or transaction, so two
overlapping cleanups are safe. Cancellation is honoured between batches.

	deleted, err := sink.Cleanup(ctx, audit.LogTypeRequest, cutoff, 1000, false)

A dry run returns the number of matching records without deleting anything.
*/
package audit
