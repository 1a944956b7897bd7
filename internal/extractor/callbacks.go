// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/reqaudit/internal/logging"
)

// UserIDResolver resolves the user id of the request's caller. An empty
// string means anonymous.
type UserIDResolver interface {
	UserID(r *http.Request) (string, error)
}

// UserIDFunc adapts a function to UserIDResolver.
type UserIDFunc func(r *http.Request) (string, error)

// UserID implements UserIDResolver.
func (f UserIDFunc) UserID(r *http.Request) (string, error) { return f(r) }

// ExtraDataProvider supplies application-defined fields for a record.
// resp is nil for access records.
type ExtraDataProvider interface {
	ExtraData(r *http.Request, resp *Response) (map[string]any, error)
}

// ExtraDataFunc adapts a function to ExtraDataProvider.
type ExtraDataFunc func(r *http.Request, resp *Response) (map[string]any, error)

// ExtraData implements ExtraDataProvider.
func (f ExtraDataFunc) ExtraData(r *http.Request, resp *Response) (map[string]any, error) {
	return f(r, resp)
}

// HeaderUserID reads the user id from a request header set by an upstream
// authenticating proxy.
type HeaderUserID struct {
	Header string
}

// UserID implements UserIDResolver.
func (h HeaderUserID) UserID(r *http.Request) (string, error) {
	return strings.TrimSpace(r.Header.Get(h.Header)), nil
}

// HeaderExtraData copies the named request headers into the extra fields,
// keyed by the lower-cased header name. Missing headers are omitted.
type HeaderExtraData struct {
	Headers []string
}

// ExtraData implements ExtraDataProvider.
func (h HeaderExtraData) ExtraData(r *http.Request, _ *Response) (map[string]any, error) {
	out := make(map[string]any, len(h.Headers))
	for _, name := range h.Headers {
		if v := r.Header.Get(name); v != "" {
			out[strings.ToLower(name)] = v
		}
	}
	return out, nil
}

// resolveUserID calls the resolver and converts any failure to "no user".
func resolveUserID(ctx context.Context, resolver UserIDResolver, r *http.Request) (id *string) {
	if resolver == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Warn().Str("panic", fmt.Sprint(rec)).Msg("User id resolver panicked")
			id = nil
		}
	}()

	v, err := resolver.UserID(r)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("User id resolver failed")
		return nil
	}
	if v == "" {
		return nil
	}
	return &v
}

// resolveExtra calls the provider and converts any failure to an empty map.
func resolveExtra(ctx context.Context, provider ExtraDataProvider, r *http.Request, resp *Response) (extra map[string]any) {
	extra = map[string]any{}
	if provider == nil {
		return extra
	}
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Warn().Str("panic", fmt.Sprint(rec)).Msg("Extra data provider panicked")
			extra = map[string]any{}
		}
	}()

	data, err := provider.ExtraData(r, resp)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Extra data provider failed")
		return map[string]any{}
	}
	if data == nil {
		return map[string]any{}
	}
	return data
}
