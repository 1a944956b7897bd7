// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

var errTrailingData = errors.New("trailing data after JSON value")

// ParseJSON decodes a JSON document into a Value, keeping object keys in
// document order. Numbers keep their literal form.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return Scalar(tok), nil
	}

	switch delim {
	case '{':
		var entries []Entry
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return Value{}, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Entry{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return Value{}, err
		}
		return Mapping(entries...), nil
	case '[':
		var items []Value
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		if _, err := dec.Token(); err != nil {
			return Value{}, err
		}
		return Sequence(items...), nil
	default:
		return Value{}, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// Render writes v as JSON text. Entries are separated by ", " and keys by
// ": ", which keeps stored bodies readable in the admin views.
func Render(v Value) (string, error) {
	var b strings.Builder
	if err := render(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func render(b *strings.Builder, v Value) error {
	switch v.Kind {
	case KindMapping:
		b.WriteByte('{')
		for i, e := range v.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			key, err := json.MarshalNoEscape(e.Key)
			if err != nil {
				return err
			}
			b.Write(key)
			b.WriteString(": ")
			if err := render(b, e.Value); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case KindSequence:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := render(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		if n, ok := v.Scalar.(json.Number); ok {
			b.WriteString(n.String())
			return nil
		}
		data, err := json.MarshalNoEscape(v.Scalar)
		if err != nil {
			return err
		}
		b.Write(data)
	}
	return nil
}

// MaskJSON parses data as JSON, masks it and renders it again. ok is false
// when data is not a JSON document, in which case callers fall back to
// MaskText.
func MaskJSON(data []byte, fields *FieldSet) (masked string, ok bool) {
	v, err := ParseJSON(data)
	if err != nil {
		return "", false
	}
	out, err := Render(Mask(v, fields))
	if err != nil {
		return "", false
	}
	return out, true
}
