// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

import (
	"strings"

	"github.com/goccy/go-json"
)

type jsonFrame struct {
	object    bool
	expectKey bool
}

// MaskJSONPrefix masks JSON text that may be cut short or otherwise
// malformed, such as the captured prefix of an oversized body. It scans the
// raw text and replaces the whole value of every sensitive object key with
// the quoted MaskToken, including nested objects and arrays. A value cut off
// by the end of data is masked to the end. Text outside sensitive values is
// kept byte for byte. ok is false when data does not start with an object or
// an array.
func MaskJSONPrefix(data []byte, fields *FieldSet) (masked string, ok bool) {
	start := skipSpace(data, 0)
	if start == len(data) || (data[start] != '{' && data[start] != '[') {
		return "", false
	}

	var (
		b     strings.Builder
		stack []jsonFrame
	)
	b.Grow(len(data))
	b.Write(data[:start])

	for i := start; i < len(data); {
		c := data[i]
		switch c {
		case '{', '[':
			stack = append(stack, jsonFrame{object: c == '{', expectKey: c == '{'})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if n := len(stack); n > 0 && stack[n-1].object {
				stack[n-1].expectKey = true
			}
		case '"':
			end := stringEnd(data, i)
			raw := data[i:end]
			b.Write(raw)
			i = end

			top := len(stack) - 1
			if top < 0 || !stack[top].object || !stack[top].expectKey {
				continue
			}
			stack[top].expectKey = false
			if !fields.Contains(unquoteKey(raw)) {
				continue
			}

			j := skipSpace(data, i)
			if j == len(data) || data[j] != ':' {
				continue
			}
			j = skipSpace(data, j+1)
			b.Write(data[i:j])
			i = j
			if j < len(data) {
				b.WriteString(`"` + MaskToken + `"`)
				i = valueEnd(data, j)
			}
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), true
}

func skipSpace(data []byte, i int) int {
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// stringEnd returns the index just past the string starting at data[i], or
// len(data) when the string is unterminated.
func stringEnd(data []byte, i int) int {
	for j := i + 1; j < len(data); j++ {
		switch data[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(data)
}

// valueEnd returns the index just past the value starting at data[i].
func valueEnd(data []byte, i int) int {
	switch data[i] {
	case '"':
		return stringEnd(data, i)
	case '{', '[':
		depth := 0
		for j := i; j < len(data); {
			switch data[j] {
			case '"':
				j = stringEnd(data, j)
				continue
			case '{', '[':
				depth++
			case '}', ']':
				depth--
				if depth == 0 {
					return j + 1
				}
			}
			j++
		}
		return len(data)
	default:
		j := i
		for j < len(data) {
			switch data[j] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return j
			}
			j++
		}
		return j
	}
}

func unquoteKey(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimPrefix(string(raw), `"`), `"`)
}
