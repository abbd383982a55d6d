// Package rest provides an HTTP client for the cloud record store's
// PostgREST-style API with retry, bearer authentication, and error
// classification.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, rest.ErrDuplicate) to check.
var (
	ErrBadRequest   = errors.New("rest: bad request")
	ErrUnauthorized = errors.New("rest: unauthorized")
	ErrForbidden    = errors.New("rest: forbidden")
	ErrNotFound     = errors.New("rest: not found")
	ErrDuplicate    = errors.New("rest: duplicate id")
	ErrSchema       = errors.New("rest: schema mismatch")
	ErrThrottled    = errors.New("rest: throttled")
	ErrServerError  = errors.New("rest: server error")
	ErrNoSession    = errors.New("rest: no session")
)

// pgUniqueViolation is the PostgreSQL error code for unique-constraint
// violations, surfaced in the response body on duplicate inserts.
const pgUniqueViolation = "23505"

// Error wraps a sentinel with the HTTP status and the API error body.
type Error struct {
	StatusCode int
	Code       string // database error code from the response body, if any
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("rest: HTTP %d (code %s): %s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("rest: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorBody is the JSON shape of PostgREST error responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a non-2xx response to a sentinel. Duplicate detection looks
// at both the 409 status and the unique-violation code, because the API
// reports constraint violations either way depending on the endpoint.
func classify(statusCode int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb) // best effort; plain-text bodies are fine

	if statusCode == http.StatusConflict || eb.Code == pgUniqueViolation {
		return ErrDuplicate
	}

	var sentinel error

	switch statusCode {
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnprocessableEntity:
		sentinel = ErrSchema
	case http.StatusTooManyRequests:
		sentinel = ErrThrottled
	default:
		if statusCode >= http.StatusInternalServerError {
			sentinel = ErrServerError
		} else {
			sentinel = ErrBadRequest
		}
	}

	return sentinel
}

// isRetryable reports whether the status code is worth retrying.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsDuplicate reports whether err is a duplicate-id rejection. The uploader
// treats duplicates as success (the id is client-generated, so the row is
// already present remotely).
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsAuth reports whether err means the session is missing, expired, or
// rejected. Auth errors abort the sync cycle.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNoSession)
}

// IsSchema reports whether err is a permanent per-row rejection (malformed
// body, unknown column). Such rows are skipped, not retried blindly.
func IsSchema(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrSchema)
}
