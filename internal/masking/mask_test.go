// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package masking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFieldSetContains(t *testing.T) {
	t.Parallel()

	fs := NewFieldSet("Password", " token ", "")
	tests := []struct {
		name string
		want bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"Token", true},
		{"password_hint", false},
		{"user", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := fs.Contains(tt.name); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	var nilSet *FieldSet
	if nilSet.Contains("password") {
		t.Error("nil FieldSet should contain nothing")
	}
}

func TestMaskNested(t *testing.T) {
	t.Parallel()

	fs := NewFieldSet("password", "api_key")
	in := Mapping(
		Entry{Key: "user", Value: Scalar("alice")},
		Entry{Key: "Password", Value: Scalar("hunter2")},
		Entry{Key: "profile", Value: Mapping(
			Entry{Key: "API_KEY", Value: Mapping(Entry{Key: "inner", Value: Scalar("x")})},
			Entry{Key: "age", Value: Scalar(30)},
		)},
		Entry{Key: "devices", Value: Sequence(
			Mapping(Entry{Key: "password", Value: Scalar("d1")}, Entry{Key: "id", Value: Scalar("a")}),
			Scalar("plain"),
		)},
	)

	out := Mask(in, fs)

	if v, _ := out.Get("user"); v.Scalar != "alice" {
		t.Errorf("user = %v, want alice", v.Scalar)
	}
	if v, _ := out.Get("Password"); v.Scalar != MaskToken {
		t.Errorf("Password = %v, want mask token", v.Scalar)
	}
	profile, _ := out.Get("profile")
	if v, _ := profile.Get("API_KEY"); v.Kind != KindScalar || v.Scalar != MaskToken {
		t.Errorf("nested API_KEY not masked regardless of type: %+v", v)
	}
	if v, _ := profile.Get("age"); v.Scalar != 30 {
		t.Errorf("age sibling changed: %v", v.Scalar)
	}
	devices, _ := out.Get("devices")
	if v, _ := devices.Items[0].Get("password"); v.Scalar != MaskToken {
		t.Errorf("sequence element not masked: %v", v.Scalar)
	}
	if v, _ := devices.Items[0].Get("id"); v.Scalar != "a" {
		t.Errorf("sequence sibling changed: %v", v.Scalar)
	}
	if devices.Items[1].Scalar != "plain" {
		t.Errorf("scalar element changed: %v", devices.Items[1].Scalar)
	}

	// input untouched
	if v, _ := in.Get("Password"); v.Scalar != "hunter2" {
		t.Errorf("Mask modified its input: %v", v.Scalar)
	}
}

func TestMaskText(t *testing.T) {
	t.Parallel()

	fs := NewFieldSet(DefaultSensitiveFields...)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"form", "user=alice&password=secret123&x=1", "user=alice&password=" + MaskToken + "&x=1"},
		{"colon", "Token: abc.def", "Token: " + MaskToken},
		{"json-like", `{"password": "p w", "user": "bob"`, `{"password": "` + MaskToken + `", "user": "bob"`},
		{"single quoted", "{'secret': 'xyz'}", "{'secret': '" + MaskToken + "'}"},
		{"escaped quote", `password="a\"b c" next`, `password="` + MaskToken + `" next`},
		{"unterminated quote", `token: "abc def`, `token: "` + MaskToken + `"`},
		{"no match", "nothing to see", "nothing to see"},
		{"partial name untouched", "csrf_token_id=1", "csrf_token_id=1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MaskText(tt.in, fs); got != tt.want {
				t.Errorf("MaskText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMaskTextWithoutFields(t *testing.T) {
	t.Parallel()

	in := "password=secret"
	if got := MaskText(in, NewFieldSet()); got != in {
		t.Errorf("empty field set changed text: %q", got)
	}
}

func TestMaskHeaders(t *testing.T) {
	t.Parallel()

	fs := NewFieldSet("authorization", "cookie")
	in := map[string]string{
		"Authorization": "Bearer abc",
		"Cookie":        "sessionid=1",
		"Content-Type":  "application/json",
	}
	out := MaskHeaders(in, fs)
	if out["Authorization"] != MaskToken || out["Cookie"] != MaskToken {
		t.Errorf("sensitive headers not masked: %v", out)
	}
	if out["Content-Type"] != "application/json" {
		t.Errorf("Content-Type changed: %q", out["Content-Type"])
	}
	if in["Authorization"] != "Bearer abc" {
		t.Error("MaskHeaders modified its input")
	}
	if MaskHeaders(nil, fs) != nil {
		t.Error("nil headers should stay nil")
	}
}

func TestMaskAny(t *testing.T) {
	t.Parallel()

	fs := NewFieldSet("secret")
	out := MaskAny(map[string]any{
		"tenant": "acme",
		"nested": map[string]any{"secret": 42},
	}, fs)
	nested, ok := out["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested has type %T", out["nested"])
	}
	if nested["secret"] != MaskToken {
		t.Errorf("nested secret = %v", nested["secret"])
	}
	if out["tenant"] != "acme" {
		t.Errorf("tenant = %v", out["tenant"])
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		limit         int
		want          string
		wantTruncated bool
	}{
		{"shorter", "abc", 5, "abc", false},
		{"exact", "abcde", 5, "abcde", false},
		{"longer", "abcdefgh", 5, "abcde", true},
		{"zero limit", "abc", 0, "", true},
		{"empty", "", 0, "", false},
		{"multibyte", "héllo wörld", 4, "héll", true},
		{"negative limit", "abc", -1, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, truncated := Truncate(tt.text, tt.limit)
			if got != tt.want || truncated != tt.wantTruncated {
				t.Errorf("Truncate(%q, %d) = (%q, %v), want (%q, %v)",
					tt.text, tt.limit, got, truncated, tt.want, tt.wantTruncated)
			}
		})
	}
}

func TestTruncateNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ab€", 100)
	for limit := 0; limit < 310; limit += 7 {
		got, _ := Truncate(text, limit)
		if n := utf8.RuneCountInString(got); n > limit {
			t.Fatalf("Truncate(_, %d) returned %d runes", limit, n)
		}
	}
}
