// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package middleware

import (
	"bytes"
	"net/http"

	"github.com/tomtom215/reqaudit/internal/extractor"
)

// captureWriter passes the response through unchanged while keeping the
// status, the size and a bounded copy of the body.
type captureWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	size        int64
	limit       int
	body        *bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter, limit int, keepBody bool) *captureWriter {
	cw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK, limit: limit}
	if keepBody {
		cw.body = &bytes.Buffer{}
	}
	return cw
}

func (cw *captureWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.statusCode = code
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.wroteHeader = true
	n, err := cw.ResponseWriter.Write(b)
	cw.size += int64(n)
	if cw.body != nil && cw.body.Len() < cw.limit {
		keep := b[:n]
		if room := cw.limit - cw.body.Len(); len(keep) > room {
			keep = keep[:room]
		}
		cw.body.Write(keep)
	}
	return n, err
}

// Flush implements http.Flusher when the underlying writer does.
func (cw *captureWriter) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *captureWriter) Unwrap() http.ResponseWriter { return cw.ResponseWriter }

// response snapshots what the handler produced.
func (cw *captureWriter) response() *extractor.Response {
	resp := &extractor.Response{
		StatusCode: cw.statusCode,
		Header:     cw.ResponseWriter.Header().Clone(),
	}
	if cw.body != nil && cw.body.Len() > 0 {
		resp.Body = &extractor.CapturedBody{
			Data:   cw.body.Bytes(),
			Size:   cw.size,
			Capped: cw.size > int64(cw.body.Len()),
		}
	}
	return resp
}
