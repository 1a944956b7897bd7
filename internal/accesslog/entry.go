// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Package accesslog captures the server's own access-log stream as audit
// records, independently of the application middleware.
//
// Entries arrive from three places: the Handler server wrapper, ParseLine
// for existing access-log files, and direct Capture calls from a process
// manager. Capture never blocks; entries are converted and written by the
// Adapter's own goroutine.
package accesslog

import (
	"strings"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/masking"
)

// Entry is the fixed tuple describing one completed server request.
type Entry struct {
	WorkerPID    int
	ServerAddr   string
	RemoteAddr   string
	RequestLine  string
	StatusCode   int
	ResponseSize int64
	Referer      string
	UserAgent    string
	Duration     time.Duration
	Timestamp    time.Time
	// User is the authenticated remote user, if the server knows one.
	User string
}

// toRecord converts e into an access record. Query strings in the request
// line are masked.
func toRecord(e Entry, fields *masking.FieldSet) *audit.AccessRecord {
	line := masking.MaskText(e.RequestLine, fields)
	method, url, proto := splitRequestLine(line)

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &audit.AccessRecord{
		ID:           audit.NewID(),
		Timestamp:    ts.UTC(),
		WorkerPID:    e.WorkerPID,
		ServerAddr:   e.ServerAddr,
		RemoteAddr:   e.RemoteAddr,
		RequestLine:  line,
		Method:       method,
		URL:          url,
		Protocol:     proto,
		StatusCode:   e.StatusCode,
		ResponseSize: e.ResponseSize,
		Referer:      masking.MaskText(e.Referer, fields),
		UserAgent:    e.UserAgent,
		Duration:     e.Duration,
		UserID:       audit.StringPtr(e.User),
		Extra:        map[string]any{},
	}
}

// splitRequestLine splits "GET /path HTTP/1.1". Malformed lines keep what
// could be split; the URL takes everything between method and protocol.
func splitRequestLine(line string) (method, url, proto string) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return "", "", ""
	case 1:
		return fields[0], "", ""
	case 2:
		return fields[0], fields[1], ""
	default:
		return fields[0], strings.Join(fields[1:len(fields)-1], " "), fields[len(fields)-1]
	}
}
