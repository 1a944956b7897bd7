// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Package extractor turns an observed HTTP exchange into an audit record.
//
// Extraction performs no I/O beyond buffering the request body. Every
// optional capability (user id resolution, extra data, body parsing) is
// invoked so that its failure degrades the record instead of aborting it,
// and every header, query parameter, body and extra field passes through
// the masking package before it reaches the record.
package extractor

import (
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/masking"
)

// SessionCookie is the cookie that carries the session id.
const SessionCookie = "sessionid"

// Extractor builds request records. It is immutable and safe for
// concurrent use.
type Extractor struct {
	opts       Options
	fields     *masking.FieldSet
	extensions map[string]struct{}
}

// New creates an Extractor. Copies are taken of every slice in opts.
func New(opts Options) *Extractor {
	if opts.MaxBodyLength < 0 {
		opts.MaxBodyLength = 0
	}
	opts.ExcludePaths = append([]string(nil), opts.ExcludePaths...)
	opts.ExcludeExtensions = append([]string(nil), opts.ExcludeExtensions...)
	opts.SensitiveFields = append([]string(nil), opts.SensitiveFields...)

	e := &Extractor{
		opts:       opts,
		fields:     masking.NewFieldSet(opts.SensitiveFields...),
		extensions: make(map[string]struct{}, len(opts.ExcludeExtensions)),
	}
	for _, ext := range opts.ExcludeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.extensions[ext] = struct{}{}
	}
	return e
}

// Options returns the extractor's configuration.
func (e *Extractor) Options() Options { return e.opts }

// Fields returns the sensitive field set.
func (e *Extractor) Fields() *masking.FieldSet { return e.fields }

// Excluded reports whether requests for urlPath are never logged: the path
// equals or starts with an excluded prefix, or its extension is excluded.
func (e *Extractor) Excluded(urlPath string) bool {
	for _, prefix := range e.opts.ExcludePaths {
		if prefix != "" && strings.HasPrefix(urlPath, prefix) {
			return true
		}
	}
	if len(e.extensions) == 0 {
		return false
	}
	_, skip := e.extensions[strings.ToLower(path.Ext(urlPath))]
	return skip
}

// Extract builds the record for one exchange. reqBody is the value returned
// by ReadRequestBody and may be nil; resp may be nil when the handler never
// produced a response. started is the wall-clock entry time.
func (e *Extractor) Extract(r *http.Request, reqBody *CapturedBody, resp *Response, started time.Time, elapsed time.Duration) *audit.RequestRecord {
	ctx := r.Context()
	rec := &audit.RequestRecord{
		ID:             audit.NewID(),
		Timestamp:      started.UTC(),
		Method:         r.Method,
		Path:           r.URL.Path,
		QueryString:    masking.MaskText(r.URL.RawQuery, e.fields),
		QueryParams:    e.queryParams(r),
		ContentType:    r.Header.Get("Content-Type"),
		RequestHeaders: masking.MaskHeaders(flattenHeader(r.Header), e.fields),
		Duration:       elapsed,
		UserID:         resolveUserID(ctx, e.opts.UserID, r),
		ClientIP:       ClientIP(r),
		UserAgent:      r.UserAgent(),
		SessionID:      sessionID(r),
		RequestID:      requestID(r),
	}

	if e.opts.LogRequestBody {
		rec.RequestBody, rec.RequestBodyTruncated = e.renderBody(rec.ContentType, reqBody)
	}

	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.ResponseHeaders = masking.MaskHeaders(flattenHeader(resp.Header), e.fields)
		if e.opts.LogResponseBody {
			rec.ResponseBody, rec.ResponseBodyTruncated = e.renderBody(resp.Header.Get("Content-Type"), resp.Body)
		}
	}

	rec.Extra = masking.MaskAny(resolveExtra(ctx, e.opts.ExtraData, r, resp), e.fields)
	return rec
}

func (e *Extractor) queryParams(r *http.Request) map[string]any {
	if r.URL.RawQuery == "" {
		return nil
	}
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	masked, ok := masking.Mask(masking.FromAny(map[string][]string(values)), e.fields).Interface().(map[string]any)
	if !ok {
		return nil
	}
	return masked
}

// flattenHeader joins multi-valued headers with ", " under their canonical
// names.
func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[http.CanonicalHeaderKey(k)] = strings.Join(v, ", ")
	}
	return out
}

// ClientIP returns the originating client address: the first
// X-Forwarded-For hop, else X-Real-IP, else the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Session-ID")
}

func requestID(r *http.Request) string {
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
