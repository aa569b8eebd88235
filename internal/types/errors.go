package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400) -- bad input, never retried internally.
	ErrCodeValidationUnknownPlan      ErrorCode = "validation_unknown_plan"
	ErrCodeValidationMalformedEvent   ErrorCode = "validation_malformed_event"
	ErrCodeValidationMissingPaymentID ErrorCode = "validation_missing_payment_id"

	// Not Found (404) -- benign no-op for idempotent re-deliveries,
	// a real error for direct lookups.
	ErrCodeNotFoundPayment      ErrorCode = "not_found_payment"
	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"
	ErrCodeNotFoundUser         ErrorCode = "not_found_user"

	// Conflict (409) -- provider contradicts a locally terminal state.
	ErrCodeConflictPaymentTerminal ErrorCode = "conflict_payment_terminal"

	// Upstream (502) -- provider unreachable or rejecting; retryable by caller.
	ErrCodeUpstreamProvider    ErrorCode = "upstream_provider_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Internal (500) -- record store unavailable or unexpected failure.
	// internal_database_error must never be conflated with not_found_*:
	// it prevents webhook acknowledgment so the provider redelivers.
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// Transient reports whether the error class should suppress webhook
// acknowledgment so the provider's retry mechanism redelivers the event.
// Permanently inapplicable events (validation, not-found, terminal conflict)
// are acknowledged and dropped instead.
func (c ErrorCode) Transient() bool {
	s := string(c)
	return strings.HasPrefix(s, "internal_") || strings.HasPrefix(s, "upstream_")
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain. Non-AppError errors are
// classified as internal_unexpected_error.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
