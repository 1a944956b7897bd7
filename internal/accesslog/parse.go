// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package accesslog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/reqaudit/internal/logging"
)

// ErrMalformedLine is returned by ParseLine for lines not in access format.
var ErrMalformedLine = errors.New("malformed access log line")

// TimeLayout is the layout of the bracketed access-log timestamp.
const TimeLayout = "02/Jan/2006:15:04:05 -0700"

// accessLine matches
//
//	%(h)s %(l)s %(u)s %(t)s "%(r)s" %(s)s %(b)s "%(f)s" "%(a)s" %(L)s
//
// with the trailing request time in seconds optional, so plain combined
// log format lines parse too.
var accessLine = regexp.MustCompile(
	`^(\S+) (\S+) (\S+) \[([^\]]+)\] "((?:[^"\\]|\\.)*)" (\d{3}) (\S+) "((?:[^"\\]|\\.)*)" "((?:[^"\\]|\\.)*)"(?: (\d+(?:\.\d+)?))?\s*$`)

// ParseLine parses one access-log line. WorkerPID and ServerAddr are not
// part of the format and are left for the caller to set.
func ParseLine(line string) (Entry, error) {
	m := accessLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, ErrMalformedLine
	}

	ts, err := time.Parse(TimeLayout, m[4])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedLine, m[4], err)
	}
	status, _ := strconv.Atoi(m[6])

	var size int64
	if m[7] != "-" {
		size, err = strconv.ParseInt(m[7], 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: response size %q", ErrMalformedLine, m[7])
		}
	}

	var duration time.Duration
	if m[10] != "" {
		secs, err := strconv.ParseFloat(m[10], 64)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: request time %q", ErrMalformedLine, m[10])
		}
		duration = time.Duration(secs * float64(time.Second))
	}

	return Entry{
		RemoteAddr:   m[1],
		User:         dash(m[3]),
		Timestamp:    ts,
		RequestLine:  unescape(m[5]),
		StatusCode:   status,
		ResponseSize: size,
		Referer:      dash(unescape(m[8])),
		UserAgent:    dash(unescape(m[9])),
		Duration:     duration,
	}, nil
}

func dash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}

// IngestStats summarizes one IngestReader run.
type IngestStats struct {
	Lines     int
	Captured  int
	Malformed int
	Dropped   int
}

// IngestReader parses access-log lines from r and captures them through a
// with the given pid and server address. Malformed lines are counted and
// skipped. Capture waits for buffer space, so every parsed line reaches
// the adapter. It stops at EOF, when ctx is done or when a stops.
func IngestReader(ctx context.Context, r io.Reader, a *Adapter, pid int, serverAddr string) (IngestStats, error) {
	var stats IngestStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		e, err := ParseLine(line)
		if err != nil {
			stats.Malformed++
			continue
		}
		e.WorkerPID = pid
		e.ServerAddr = serverAddr
		if err := a.CaptureWait(ctx, e); err != nil {
			stats.Dropped++
			return stats, err
		}
		stats.Captured++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read access log: %w", err)
	}

	if stats.Malformed > 0 {
		logging.Warn().
			Int("lines", stats.Lines).
			Int("malformed", stats.Malformed).
			Msg("Skipped malformed access log lines")
	}
	return stats, nil
}
