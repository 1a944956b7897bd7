// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

import "sort"

// Kind discriminates the three shapes a Value can take.
type Kind int

const (
	// KindScalar is a leaf: string, number, bool or null.
	KindScalar Kind = iota
	// KindSequence is an ordered list of values.
	KindSequence
	// KindMapping is an ordered list of key/value entries.
	KindMapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over nested body and header content. Mappings
// keep their entries in source order so re-rendered JSON matches the input
// layout.
type Value struct {
	Kind    Kind
	Scalar  any
	Items   []Value
	Entries []Entry
}

// Entry is one key/value pair of a mapping.
type Entry struct {
	Key   string
	Value Value
}

// Scalar wraps a leaf value.
func Scalar(v any) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

// Sequence builds an ordered sequence.
func Sequence(items ...Value) Value {
	return Value{Kind: KindSequence, Items: items}
}

// Mapping builds a mapping from entries, preserving their order.
func Mapping(entries ...Entry) Value {
	return Value{Kind: KindMapping, Entries: entries}
}

// Get returns the value stored under key and whether it exists.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// FromAny converts decoded Go data into a Value. Map keys are sorted because
// Go maps carry no order.
func FromAny(data any) Value {
	switch t := data.(type) {
	case Value:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, Entry{Key: k, Value: FromAny(t[k])})
		}
		return Mapping(entries...)
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, Entry{Key: k, Value: Scalar(t[k])})
		}
		return Mapping(entries...)
	case map[string][]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, Entry{Key: k, Value: fromStrings(t[k])})
		}
		return Mapping(entries...)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, FromAny(item))
		}
		return Sequence(items...)
	case []string:
		return fromStrings(t)
	default:
		return Scalar(t)
	}
}

// fromStrings collapses a single-element list to a scalar, the way query
// strings and form bodies are usually read.
func fromStrings(values []string) Value {
	if len(values) == 1 {
		return Scalar(values[0])
	}
	items := make([]Value, 0, len(values))
	for _, s := range values {
		items = append(items, Scalar(s))
	}
	return Sequence(items...)
}

// Interface converts the Value back into plain Go data.
func (v Value) Interface() any {
	switch v.Kind {
	case KindMapping:
		m := make(map[string]any, len(v.Entries))
		for _, e := range v.Entries {
			m[e.Key] = e.Value.Interface()
		}
		return m
	case KindSequence:
		s := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			s = append(s, item.Interface())
		}
		return s
	default:
		return v.Scalar
	}
}
