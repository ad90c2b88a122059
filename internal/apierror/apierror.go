// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package apierror defines the tagged error type carried through the request
// pipeline and rendered as the public error envelope. Every terminal failure
// in the gateway maps to one of the stable codes below.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes returned in the "code" field of the error envelope.
const (
	CodeMissingAPIKey          = "missing_api_key"
	CodeInvalidAPIKey          = "invalid_api_key"
	CodeRateLimited            = "rate_limited"
	CodeQuotaExhausted         = "quota_exhausted"
	CodeCapabilityDisabled     = "capability_disabled"
	CodeCapabilityNotSupported = "capability_not_supported"
	CodeSchemaNotFound         = "schema_not_found"
	CodeSchemaLoadFailed       = "schema_load_failed"
	CodeInvalidJSON            = "invalid_json"
	CodeSchemaValidationFailed = "schema_validation_failed"
	CodeModelNotLoaded         = "model_not_loaded"
	CodeInvalidRequest         = "invalid_request"
	CodeInternal               = "internal_error"
)

// Error is the tagged error used for pipeline control flow. It carries the
// stable code, the HTTP status to render, and optional structured extra data
// surfaced to the client.
type Error struct {
	Code    string
	Status  int
	Message string
	Extra   map[string]any
	// Err is the wrapped cause, not surfaced to the client.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// WithExtra returns a copy of e with the given extra map attached.
func (e *Error) WithExtra(extra map[string]any) *Error {
	clone := *e
	clone.Extra = extra
	return &clone
}

// New constructs an Error with the given code, HTTP status and message.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a fresh Error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an unexpected error as internal_error (500). The cause is
// kept for logging; the client sees only the generic message.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "internal error", Err: err}
}

// From extracts an *Error from err, mapping unknown errors to internal_error.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// Convenience constructors for the common admission failures.

// MissingAPIKey reports an absent X-API-Key header.
func MissingAPIKey() *Error {
	return New(CodeMissingAPIKey, http.StatusUnauthorized, "missing X-API-Key header")
}

// InvalidAPIKey reports an unknown or deactivated API key.
func InvalidAPIKey() *Error {
	return New(CodeInvalidAPIKey, http.StatusUnauthorized, "invalid or inactive API key")
}

// RateLimited reports a rate-limit rejection with the seconds to wait.
func RateLimited(retryAfter int64) *Error {
	e := New(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
	e.Extra = map[string]any{"retry_after": retryAfter}
	return e
}

// QuotaExhausted reports an exhausted monthly quota.
func QuotaExhausted() *Error {
	return New(CodeQuotaExhausted, http.StatusPaymentRequired, "monthly quota exhausted")
}

// ModelNotLoaded reports a backend that is not available to serve.
func ModelNotLoaded(modelID string) *Error {
	return Newf(CodeModelNotLoaded, http.StatusServiceUnavailable, "model %q is not loaded", modelID)
}
