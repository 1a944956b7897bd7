// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package extractor

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/reqaudit/internal/masking"
)

// CapturedBody is a bounded prefix of a request or response body.
type CapturedBody struct {
	// Data holds at most the capture limit of leading bytes.
	Data []byte
	// Size is the full body size in bytes when known, else len(Data).
	Size int64
	// Capped is set when Data is shorter than the body.
	Capped bool
}

// Response is what the interceptor observed of the handler's response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       *CapturedBody
}

// bodyMethods are the methods whose request body is logged.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// ReadRequestBody buffers up to CaptureLimit bytes of the request body and
// replaces r.Body so the handler still reads the complete, unmodified body.
// It returns nil for methods other than POST, PUT and PATCH, when request
// body logging is off, and for empty bodies.
func (e *Extractor) ReadRequestBody(r *http.Request) (*CapturedBody, error) {
	if !e.opts.LogRequestBody || !bodyMethods[r.Method] || r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	limit := int64(e.opts.CaptureLimit())
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), closer: r.Body}
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(buf) == 0 {
		return nil, nil
	}

	body := &CapturedBody{Data: buf, Size: int64(len(buf))}
	if int64(len(buf)) > limit {
		body.Data = buf[:limit]
		body.Capped = true
		if r.ContentLength > 0 {
			body.Size = r.ContentLength
		}
	}
	return body, nil
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

// renderBody masks body according to its content type and truncates it.
func (e *Extractor) renderBody(contentType string, body *CapturedBody) (text *string, truncated bool) {
	if body == nil || len(body.Data) == 0 {
		return nil, false
	}

	data := body.Data
	if body.Capped {
		data = trimPartialRune(data)
	}
	if !utf8.Valid(data) {
		placeholder := fmt.Sprintf("[binary content: %d bytes]", body.Size)
		return &placeholder, false
	}

	masked := e.maskBody(mediaType(contentType), data)
	out, cut := masking.Truncate(masked, e.opts.MaxBodyLength)
	return &out, cut || body.Capped
}

func (e *Extractor) maskBody(media string, data []byte) string {
	if media == "application/x-www-form-urlencoded" {
		if values, err := url.ParseQuery(string(data)); err == nil {
			if out, err := masking.Render(masking.Mask(masking.FromAny(map[string][]string(values)), e.fields)); err == nil {
				return out
			}
		}
		return masking.MaskText(string(data), e.fields)
	}

	// Any body is tried as JSON, whatever it claims to be. A capped or
	// broken document is masked structurally over its raw text so that
	// nested sensitive values are covered too.
	if out, ok := masking.MaskJSON(data, e.fields); ok {
		return out
	}
	if out, ok := masking.MaskJSONPrefix(data, e.fields); ok {
		return out
	}
	return masking.MaskText(string(data), e.fields)
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by capture.
func trimPartialRune(data []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		if utf8.RuneStart(data[len(data)-i]) {
			if !utf8.FullRune(data[len(data)-i:]) {
				return data[:len(data)-i]
			}
			break
		}
	}
	return data
}
