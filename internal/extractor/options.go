// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package extractor

import (
	"unicode/utf8"

	"github.com/tomtom215/reqaudit/internal/masking"
)

// Default option values.
const (
	DefaultMaxBodyLength = 8192

	// minCaptureBytes is the smallest body prefix kept for masking, so
	// that a JSON document slightly over the limit can still be parsed.
	minCaptureBytes = 64 * 1024
)

// DefaultExcludePaths are path prefixes skipped when none are configured.
var DefaultExcludePaths = []string{"/api/v1/health", "/metrics", "/admin/jsi18n/", "/static/", "/media/"}

// DefaultExcludeExtensions are path extensions skipped when none are configured.
var DefaultExcludeExtensions = []string{".css", ".js", ".ico", ".jpg", ".png", ".gif", ".svg"}

// Options configures an Extractor. It is copied at construction and never
// read again by the caller's reference.
type Options struct {
	LogRequestBody    bool
	LogResponseBody   bool
	ExcludePaths      []string
	ExcludeExtensions []string
	MaxBodyLength     int
	SensitiveFields   []string

	// UserID resolves the acting user. Nil leaves user ids empty.
	UserID UserIDResolver
	// ExtraData supplies custom record fields. Nil leaves them empty.
	ExtraData ExtraDataProvider
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		LogRequestBody:    true,
		LogResponseBody:   true,
		ExcludePaths:      append([]string(nil), DefaultExcludePaths...),
		ExcludeExtensions: append([]string(nil), DefaultExcludeExtensions...),
		MaxBodyLength:     DefaultMaxBodyLength,
		SensitiveFields:   append([]string(nil), masking.DefaultSensitiveFields...),
	}
}

// CaptureLimit is the number of body bytes buffered for logging. It is large
// enough to hold MaxBodyLength runes of any encoding.
func (o Options) CaptureLimit() int {
	n := o.MaxBodyLength*utf8.UTFMax + 1
	if n < minCaptureBytes {
		n = minCaptureBytes
	}
	return n
}
