// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

/*
Package retention deletes audit records past their retention period.

Request records and access records have independent cutoffs (90 and 120
days by default). A sweep computes cutoff = now - days for each selected
type and calls Sink.Cleanup, which deletes in batches of at most BatchSize
records until a batch comes back short:

	sweeper, _ := retention.New(sink, retention.DefaultOptions())
	res, err := sweeper.Sweep(ctx, retention.Request{
		LogType:       audit.LogTypeAll,
		OlderThanDays: 30,
		DryRun:        true,
	})

A dry run only counts. A failed batch aborts the sweep; the counts reached
so far are returned with the error and earlier batches are not restored.

Scheduler runs a sweep of every type on an interval under the supervisor.
*/
package retention
