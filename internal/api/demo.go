// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// maxDemoBody caps the echo body read.
const maxDemoBody = 1 << 20

// DemoRoutes returns the sample application that runs behind the audit
// interceptor. It gives operators something to exercise the pipeline with.
func DemoRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/echo", demoEcho)
	r.Post("/login", demoLogin)
	r.Get("/status/{code}", demoStatus)
	r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Success(map[string]string{"message": "hello"})
	})
	return r
}

// demoEcho returns the request body as sent.
func demoEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDemoBody))
	if err != nil {
		NewResponseWriter(w, r).BadRequest("Failed to read request body")
		return
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type demoCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// demoLogin accepts any credentials and returns a fake token, so the
// masked request and response bodies can be inspected in the admin views.
func demoLogin(w http.ResponseWriter, r *http.Request) {
	var creds demoCredentials
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDemoBody)).Decode(&creds); err != nil || creds.Username == "" {
		NewResponseWriter(w, r).BadRequest("username and password are required")
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{
		"username": creds.Username,
		"token":    "demo-" + strconv.Itoa(len(creds.Password)),
	})
}

// demoStatus answers with the status code from the path.
func demoStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 200 || code > 599 {
		NewResponseWriter(w, r).BadRequest("code must be an integer between 200 and 599")
		return
	}
	switch {
	case code == http.StatusNoContent || code == http.StatusNotModified:
		w.WriteHeader(code)
		return
	case code >= 400:
		NewResponseWriter(w, r).Error(code, "DEMO_STATUS", "Requested status "+strconv.Itoa(code))
		return
	}
	NewResponseWriter(w, r).SuccessWithMeta(code, map[string]int{"status": code}, nil)
}
