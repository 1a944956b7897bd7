// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
)

// Scheduler runs a full sweep of every record type on a fixed interval. It
// implements suture.Service.
type Scheduler struct {
	sweeper    *Sweeper
	interval   time.Duration
	runOnStart bool

	mu      sync.RWMutex
	lastRun time.Time
	lastRes Result
	lastErr error
}

// NewScheduler creates a Scheduler. With runOnStart the first sweep starts
// immediately instead of after one interval.
func NewScheduler(s *Sweeper, interval time.Duration, runOnStart bool) (*Scheduler, error) {
	if s == nil {
		return nil, errors.New("sweeper is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	return &Scheduler{sweeper: s, interval: interval, runOnStart: runOnStart}, nil
}

// Serve sweeps until ctx is done. A failed sweep is logged and retried on
// the next tick; it never stops the scheduler.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Retention scheduler started")

	if s.runOnStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Retention scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.sweeper.Sweep(ctx, Request{LogType: audit.LogTypeAll})

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastRes = res
	s.lastErr = err
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Int64("deleted", res.Total()).Msg("Scheduled retention sweep failed")
	}
}

// LastRun returns the time, result and error of the most recent sweep.
func (s *Scheduler) LastRun() (time.Time, Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastRes, s.lastErr
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string { return "retention-scheduler" }
