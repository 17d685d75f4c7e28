package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMalformedResponse is returned when a response is missing a field the
	// client depends on.
	ErrMalformedResponse = errors.New("malformed response")
)

// ErrorClass classifies an HTTP failure for retry decisions and metrics.
type ErrorClass string

const (
	// ErrorClassRateLimit represents 429 responses. Retryable with backoff.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassAuth represents 401 responses. Retryable after the session
	// token is invalidated and refreshed.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx responses. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses. Never retried; the API
	// signals overload exclusively through 429.
	ErrorClassServer ErrorClass = "server"
)

// classifyStatus maps a non-2xx status code to its error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// shouldRetry reports whether an error class is recoverable in place.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassRateLimit, ErrorClassAuth:
		return true
	default:
		return false
	}
}

// APIError is a non-2xx response from the Meridian API, preserving the status
// code and body for diagnostics.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Endpoint   string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body != "" {
		return fmt.Sprintf("meridian %s error (status %d) on %s: %s",
			e.Class, e.StatusCode, e.Endpoint, body)
	}
	return fmt.Sprintf("meridian %s error (status %d) on %s",
		e.Class, e.StatusCode, e.Endpoint)
}
