// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package notify

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Alert is the structured payload handed to a Transport.
type Alert struct {
	ExceptionType string         `json:"exception_type"`
	Message       string         `json:"message"`
	Stack         string         `json:"stack"`
	Context       map[string]any `json:"context,omitempty"`
	Recipients    []string       `json:"recipients"`
	Sender        string         `json:"sender"`
	Subject       string         `json:"subject"`
	Hostname      string         `json:"hostname,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// BuildAlert constructs the alert for err. The exception type is the type
// of the innermost wrapped error.
func BuildAlert(err error, fields map[string]any, opts Options) *Alert {
	ctxFields := make(map[string]any, len(fields))
	for k, v := range fields {
		ctxFields[k] = v
	}

	alert := &Alert{
		ExceptionType: rootType(err),
		Message:       err.Error(),
		Stack:         captureStack(),
		Context:       ctxFields,
		Recipients:    append([]string(nil), opts.Recipients...),
		Sender:        opts.Sender,
		Timestamp:     time.Now().UTC(),
	}

	subject := "Audit logging failure: " + alert.ExceptionType
	if opts.SubjectPrefix != "" {
		subject = opts.SubjectPrefix + " " + subject
	}
	alert.Subject = subject
	return alert
}

// rootType follows the single-error Unwrap chain and names the last type.
func rootType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

// Text renders the alert as a plain-text message body.
func (a *Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "An error occurred in the audit logging pipeline.\n\n")
	fmt.Fprintf(&b, "Type:      %s\n", a.ExceptionType)
	fmt.Fprintf(&b, "Message:   %s\n", a.Message)
	fmt.Fprintf(&b, "Time:      %s\n", a.Timestamp.Format(time.RFC3339))
	if a.Hostname != "" {
		fmt.Fprintf(&b, "Host:      %s\n", a.Hostname)
	}
	if a.RequestID != "" {
		fmt.Fprintf(&b, "Request:   %s\n", a.RequestID)
	}

	if len(a.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(a.Context))
		for k := range a.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, a.Context[k])
		}
	}

	b.WriteString("\nStack:\n")
	b.WriteString(a.Stack)
	return b.String()
}
