// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Package masking redacts sensitive fields from headers, structured bodies
// and free text before anything is persisted, and truncates oversized text.
//
// Field names match case-insensitively and exactly: "password" masks
// "Password" and "PASSWORD" but not "password_hint". Every function in this
// package fails open: input it cannot interpret is returned unchanged.
package masking

import (
	"regexp"
	"sort"
	"strings"
)

// MaskToken replaces every sensitive value.
const MaskToken = "***MASKED***"

// DefaultSensitiveFields is the field list used when none is configured.
var DefaultSensitiveFields = []string{
	"password",
	"token",
	"access",
	"refresh",
	"secret",
	"passwd",
	"authorization",
	"api_key",
	"cookie",
	"set-cookie",
}

// FieldSet is an immutable set of sensitive field names plus the text
// pattern derived from them. It is safe for concurrent use.
type FieldSet struct {
	names   map[string]struct{}
	pattern *regexp.Regexp
}

// NewFieldSet builds a FieldSet. Names are trimmed and lower-cased; empty
// names are ignored.
func NewFieldSet(names ...string) *FieldSet {
	fs := &FieldSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		fs.names[n] = struct{}{}
	}
	if len(fs.names) == 0 {
		return fs
	}

	alts := make([]string, 0, len(fs.names))
	for n := range fs.names {
		alts = append(alts, regexp.QuoteMeta(n))
	}
	// longest first so "api_key" wins over a hypothetical "api"
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	fs.pattern = regexp.MustCompile(
		`(?i)\b(` + strings.Join(alts, "|") + `)(["']?\s*[:=]\s*)("(?:[^"\\]|\\.)*"?|'(?:[^'\\]|\\.)*'?|[^\s&,;"'}\]]+)`,
	)
	return fs
}

// Contains reports whether name is sensitive.
func (f *FieldSet) Contains(name string) bool {
	if f == nil || len(f.names) == 0 {
		return false
	}
	_, ok := f.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the sorted field names.
func (f *FieldSet) Names() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Mask returns a copy of v in which the value of every mapping entry whose
// key is in fields is replaced with MaskToken, at any depth. v is not
// modified.
func Mask(v Value, fields *FieldSet) Value {
	switch v.Kind {
	case KindMapping:
		entries := make([]Entry, len(v.Entries))
		for i, e := range v.Entries {
			if fields.Contains(e.Key) {
				entries[i] = Entry{Key: e.Key, Value: Scalar(MaskToken)}
				continue
			}
			entries[i] = Entry{Key: e.Key, Value: Mask(e.Value, fields)}
		}
		return Mapping(entries...)
	case KindSequence:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = Mask(item, fields)
		}
		return Sequence(items...)
	default:
		return v
	}
}

// MaskText replaces the value part of every "field=value" or "field: value"
// occurrence in unstructured text. Quoted values keep their quotes.
func MaskText(text string, fields *FieldSet) string {
	if fields == nil || fields.pattern == nil || text == "" {
		return text
	}
	matches := fields.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		// m[6]:m[7] is the value group
		start, end := m[6], m[7]
		b.WriteString(text[last:start])
		switch text[start] {
		case '"':
			b.WriteString(`"` + MaskToken + `"`)
		case '\'':
			b.WriteString(`'` + MaskToken + `'`)
		default:
			b.WriteString(MaskToken)
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// MaskHeaders returns a copy of headers with sensitive header values
// replaced. Multi-valued headers are expected to be joined already.
func MaskHeaders(headers map[string]string, fields *FieldSet) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if fields.Contains(k) {
			out[k] = MaskToken
			continue
		}
		out[k] = v
	}
	return out
}

// MaskAny masks plain Go data such as caller-supplied extra fields.
func MaskAny(data map[string]any, fields *FieldSet) map[string]any {
	if data == nil {
		return nil
	}
	masked, ok := Mask(FromAny(data), fields).Interface().(map[string]any)
	if !ok {
		return data
	}
	return masked
}
