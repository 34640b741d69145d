package tally

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tallyhq-io/tally-client/internal/constants"
)

// TokenClearer drops the current access token. The classifier clears the
// token when it sees a 401 so a caller that bypasses the recovery flow
// cannot keep sending a known-bad credential.
type TokenClearer interface {
	ClearAccessToken()
}

// Classifier maps completed HTTP responses to typed errors. It performs no
// I/O; the only side effect is clearing the access token on a 401.
type Classifier struct {
	tokens TokenClearer
}

// NewClassifier creates a classifier. tokens may be nil.
func NewClassifier(tokens TokenClearer) *Classifier {
	return &Classifier{tokens: tokens}
}

// errorBody is the superset of error payload shapes the backend emits.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Details []struct {
		Message string `json:"message"`
	} `json:"details"`
	RetryAfter int `json:"retryAfter"`
}

// Classify maps a non-2xx response to an *APIError.
func (c *Classifier) Classify(status int, header http.Header, body []byte) *APIError {
	var parsed errorBody

	_ = json.Unmarshal(body, &parsed)

	switch {
	case status == http.StatusUnauthorized:
		if c.tokens != nil {
			c.tokens.ClearAccessToken()
		}

		return &APIError{
			Kind:    ErrorUnauthorized,
			Status:  status,
			Message: "Your session has expired. Please log in again.",
		}

	case status == http.StatusForbidden:
		return &APIError{
			Kind:    ErrorForbidden,
			Status:  status,
			Message: "You do not have permission to perform this action.",
		}

	case status == http.StatusNotFound:
		return &APIError{
			Kind:    ErrorNotFound,
			Status:  status,
			Message: "The requested resource was not found. Check the server address and your connection.",
		}

	case status == http.StatusUnprocessableEntity:
		return &APIError{
			Kind:    ErrorValidation,
			Status:  status,
			Message: validationMessage(&parsed),
		}

	case status == http.StatusTooManyRequests:
		wait := retryAfterSeconds(header, &parsed)

		return &APIError{
			Kind:       ErrorRateLimited,
			Status:     status,
			RetryAfter: wait,
			Message:    fmt.Sprintf("Too many requests. Please retry in %d seconds.", wait),
		}

	case status >= http.StatusInternalServerError:
		return &APIError{
			Kind:    ErrorServer,
			Status:  status,
			Message: "The server encountered an error. Please try again later.",
		}
	}

	if msg := unknownMessage(&parsed); msg != "" {
		return &APIError{Kind: ErrorUnknown, Status: status, Message: msg}
	}

	return &APIError{
		Kind:    ErrorUnknown,
		Status:  status,
		Message: fmt.Sprintf("%d: %s", status, http.StatusText(status)),
	}
}

// validationMessage concatenates field-level errors in body order, one
// "field: message" pair per line.
func validationMessage(parsed *errorBody) string {
	if len(parsed.Errors) == 0 {
		return "The submitted data failed validation."
	}

	lines := make([]string, 0, len(parsed.Errors))
	for _, fieldErr := range parsed.Errors {
		lines = append(lines, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
	}

	return strings.Join(lines, "\n")
}

// retryAfterSeconds resolves the rate-limit cooldown: Retry-After header
// first, then the body field, then the default.
func retryAfterSeconds(header http.Header, parsed *errorBody) int {
	if header != nil {
		if raw := header.Get("Retry-After"); raw != "" {
			if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
				return seconds
			}
		}
	}

	if parsed.RetryAfter > 0 {
		return parsed.RetryAfter
	}

	return constants.DefaultRetryAfterSeconds
}

// unknownMessage extracts a usable message from an unrecognized error
// payload, appending any detail lines.
func unknownMessage(parsed *errorBody) string {
	msg := parsed.Error
	if msg == "" {
		msg = parsed.Message
	}

	if msg == "" {
		return ""
	}

	for _, detail := range parsed.Details {
		if detail.Message != "" {
			msg += "\n" + detail.Message
		}
	}

	return msg
}
