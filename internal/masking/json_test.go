// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

import "testing"

func TestMaskJSONPasswordBody(t *testing.T) {
	t.Parallel()

	got, ok := MaskJSON([]byte(`{"password": "secret123", "user": "alice"}`), NewFieldSet("password"))
	if !ok {
		t.Fatal("MaskJSON rejected valid JSON")
	}
	want := `{"password": "***MASKED***", "user": "alice"}`
	if got != want {
		t.Errorf("MaskJSON = %s, want %s", got, want)
	}
}

func TestMaskJSONPreservesOrderAndNumbers(t *testing.T) {
	t.Parallel()

	in := `{"z":1.50,"a":[{"token":"t","n":null},true],"m":{"Secret":{"k":"v"}}}`
	got, ok := MaskJSON([]byte(in), NewFieldSet("token", "secret"))
	if !ok {
		t.Fatal("MaskJSON rejected valid JSON")
	}
	want := `{"z": 1.50, "a": [{"token": "***MASKED***", "n": null}, true], "m": {"Secret": "***MASKED***"}}`
	if got != want {
		t.Errorf("MaskJSON = %s, want %s", got, want)
	}
}

func TestMaskJSONRejectsNonJSON(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"password=abc", `{"a": 1`, `{"a": 1} trailing`, ""} {
		if _, ok := MaskJSON([]byte(in), NewFieldSet("password")); ok {
			t.Errorf("MaskJSON(%q) accepted invalid JSON", in)
		}
	}
}

func TestRenderEscapesStrings(t *testing.T) {
	t.Parallel()

	got, err := Render(Mapping(Entry{Key: `q"k`, Value: Scalar("<a>\n")}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `{"q\"k": "<a>\n"}`
	if got != want {
		t.Errorf("Render = %s, want %s", got, want)
	}
}

func TestFromAnyRoundTrip(t *testing.T) {
	t.Parallel()

	v := FromAny(map[string][]string{"b": {"1"}, "a": {"x", "y"}})
	if v.Kind != KindMapping || len(v.Entries) != 2 {
		t.Fatalf("unexpected value %+v", v)
	}
	if v.Entries[0].Key != "a" {
		t.Errorf("keys not sorted: %q first", v.Entries[0].Key)
	}
	if v.Entries[0].Value.Kind != KindSequence {
		t.Errorf("multi-value should be a sequence, got %s", v.Entries[0].Value.Kind)
	}
	if v.Entries[1].Value.Scalar != "1" {
		t.Errorf("single value should collapse to scalar, got %+v", v.Entries[1].Value)
	}
}
