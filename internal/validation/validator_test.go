// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package validation

import (
	"strings"
	"testing"
)

type testRequest struct {
	Limit      int    `query:"limit" validate:"min=1,max=500"`
	Offset     int    `query:"offset" validate:"min=0"`
	MinStatus  int    `query:"min_status" validate:"omitempty,min=100,max=599"`
	PathPrefix string `query:"path_prefix" validate:"omitempty,max=2048,path_prefix"`
	LogType    string `query:"log_type" validate:"omitempty,log_type"`
	ID         string `query:"id" validate:"omitempty,uuid"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input testRequest
	}{
		{"minimum", testRequest{Limit: 1}},
		{"maximum", testRequest{Limit: 500, Offset: 100000, MinStatus: 599}},
		{"filters", testRequest{Limit: 50, PathPrefix: "/api/", LogType: "access", ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     testRequest
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{"limit too low", testRequest{Limit: 0}, "limit", "min", "limit must be at least 1"},
		{"limit too high", testRequest{Limit: 501}, "limit", "max", "limit must be at most 500"},
		{"negative offset", testRequest{Limit: 1, Offset: -1}, "offset", "min", "offset must be at least 0"},
		{"status out of range", testRequest{Limit: 1, MinStatus: 42}, "min_status", "min", "min_status must be at least 100"},
		{"relative prefix", testRequest{Limit: 1, PathPrefix: "api"}, "path_prefix", "path_prefix", "path_prefix must be an absolute path starting with /"},
		{"prefix with query", testRequest{Limit: 1, PathPrefix: "/api?x=1"}, "path_prefix", "path_prefix", "path_prefix must be an absolute path starting with /"},
		{"unknown log type", testRequest{Limit: 1, LogType: "audit"}, "log_type", "log_type", "log_type must be one of: request, access, all"},
		{"bad uuid", testRequest{Limit: 1, ID: "123"}, "id", "uuid", "id must be a valid UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() should have returned an error")
			}

			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("error on %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
			if errs[0].Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", errs[0].Error(), tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&testRequest{Limit: 0}).ToAPIError()
	if single.Code != ErrorCode {
		t.Errorf("Code = %q, want %q", single.Code, ErrorCode)
	}
	if single.Details["field"] != "limit" {
		t.Errorf("Details = %v", single.Details)
	}

	multi := ValidateStruct(&testRequest{Limit: 0, Offset: -5}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("Details = %v, want two fields", multi.Details)
	}
	if !strings.Contains(multi.Message, "limit") || !strings.Contains(multi.Message, "offset") {
		t.Errorf("Message = %q", multi.Message)
	}
}
