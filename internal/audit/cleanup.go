// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/metrics"
)

// batchDeleter is the per-store primitive behind Cleanup.
type batchDeleter interface {
	// countOlder counts records strictly older than cutoff.
	countOlder(ctx context.Context, logType LogType, cutoff time.Time) (int64, error)
	// deleteOlderBatch deletes at most limit records strictly older than
	// cutoff in one atomic step and returns the number deleted.
	deleteOlderBatch(ctx context.Context, logType LogType, cutoff time.Time, limit int) (int64, error)
}

// cleanupInBatches drives a batchDeleter until a batch comes back short.
// The context is checked before every batch, never during one.
func cleanupInBatches(ctx context.Context, sink string, d batchDeleter, logType LogType, cutoff time.Time, batchSize int, dryRun bool) (int64, error) {
	if logType != LogTypeRequest && logType != LogTypeAccess {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogType, logType)
	}
	if batchSize < 1 {
		return 0, ErrInvalidBatchSize
	}

	if dryRun {
		n, err := d.countOlder(ctx, logType, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to count %s records: %w", logType, err)
		}
		return n, nil
	}

	var total int64
	batches := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := d.deleteOlderBatch(ctx, logType, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to delete %s batch %d: %w", logType, batches+1, err)
		}
		batches++
		total += n
		metrics.RecordCleanupBatch(sink, string(logType), n)

		if n < int64(batchSize) {
			break
		}
	}

	if total > 0 {
		logging.Info().
			Str("sink", sink).
			Str("log_type", string(logType)).
			Int64("deleted", total).
			Int("batches", batches).
			Time("older_than", cutoff).
			Msg("Deleted old audit records")
	}
	return total, nil
}
