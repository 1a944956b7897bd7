// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// stubService is a controllable suture.Service.
type stubService struct {
	name     string
	failures int32
	final    error

	starts atomic.Int32
}

// Serve fails the first failures calls, then returns final if set, then
// blocks until ctx is done.
func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	if s.final != nil {
		return s.final
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func (s *stubService) Starts() int32 { return s.starts.Load() }
