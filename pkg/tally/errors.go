package tally

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the category of a classified API failure.
type ErrorKind string

// Error kinds produced by the classifier and the transport layer.
const (
	ErrorUnauthorized ErrorKind = "unauthorized"
	ErrorForbidden    ErrorKind = "forbidden"
	ErrorNotFound     ErrorKind = "not_found"
	ErrorValidation   ErrorKind = "validation_failed"
	ErrorRateLimited  ErrorKind = "rate_limited"
	ErrorServer       ErrorKind = "server_error"
	ErrorTimeout      ErrorKind = "timeout"
	ErrorNetwork      ErrorKind = "network_error"
	ErrorUnknown      ErrorKind = "unknown"
)

// APIError is the typed error produced by the classifier. It is the only
// error shape surfaced to callers for failed backend requests.
type APIError struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status code that produced the error, 0 for
	// failures that never received a response (timeout, network).
	Status int
	// RetryAfter is the server-stated cooldown in seconds; set only for
	// rate-limit errors.
	RetryAfter int
	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewTimeoutError builds the typed error for a request that exceeded its
// timeout budget. Timeouts are never classified as network errors.
func NewTimeoutError() *APIError {
	return &APIError{
		Kind:    ErrorTimeout,
		Message: "The request timed out. Please try again.",
	}
}

// NewNetworkError builds the typed error for a connection-level failure.
func NewNetworkError(err error) *APIError {
	return &APIError{
		Kind:    ErrorNetwork,
		Message: "Could not reach the server. Check your connection.",
		Err:     err,
	}
}

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}

// IsRetryable reports whether an error may be retried by the backoff
// engine: network-level failures, server errors, and rate limiting.
func IsRetryable(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}

	switch apiErr.Kind {
	case ErrorNetwork, ErrorServer, ErrorRateLimited:
		return true
	default:
		return false
	}
}

// IsUnauthorized checks if the error is an authorization failure.
func IsUnauthorized(err error) bool {
	return kindOf(err) == ErrorUnauthorized
}

// IsForbidden checks if the error is a permission failure.
func IsForbidden(err error) bool {
	return kindOf(err) == ErrorForbidden
}

// IsNotFound checks if the error is a missing-resource failure.
func IsNotFound(err error) bool {
	return kindOf(err) == ErrorNotFound
}

// IsRateLimited checks if the error is a rate-limit failure.
func IsRateLimited(err error) bool {
	return kindOf(err) == ErrorRateLimited
}

// IsTimeout checks if the error is a timeout.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrorTimeout
}

func kindOf(err error) ErrorKind {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return ""
	}

	return apiErr.Kind
}
