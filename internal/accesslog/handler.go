// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package accesslog

import (
	"net"
	"net/http"
	"os"
	"time"
)

// Handler wraps a whole server's handler and captures one entry per
// completed request, the way the server's own access log would. A request
// whose handler panics before writing a header is captured as a 500 and the
// panic continues up the stack.
func Handler(next http.Handler, a *Adapter, serverAddr string) http.Handler {
	pid := os.Getpid()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &sizeWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handlerPanic := serve(next, sw, r)
		if handlerPanic != nil && !sw.wroteHeader {
			sw.statusCode = http.StatusInternalServerError
		}

		user, _, _ := r.BasicAuth()
		a.Capture(Entry{
			WorkerPID:    pid,
			ServerAddr:   serverAddr,
			RemoteAddr:   remoteHost(r.RemoteAddr),
			RequestLine:  r.Method + " " + r.RequestURI + " " + r.Proto,
			StatusCode:   sw.statusCode,
			ResponseSize: sw.size,
			Referer:      r.Referer(),
			UserAgent:    r.UserAgent(),
			Duration:     time.Since(start),
			Timestamp:    start,
			User:         user,
		})

		if handlerPanic != nil {
			panic(handlerPanic)
		}
	})
}

// serve runs the handler and returns its panic value, if any.
func serve(next http.Handler, w http.ResponseWriter, r *http.Request) (recovered any) {
	defer func() {
		recovered = recover()
	}()
	next.ServeHTTP(w, r)
	return nil
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type sizeWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	size        int64
}

func (sw *sizeWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.statusCode = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *sizeWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.size += int64(n)
	return n, err
}

func (sw *sizeWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
