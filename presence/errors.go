package presence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorClass represents whether a lookup error should be retried or not.
type ErrorClass int

const (
	// ErrorClassRetryable indicates a transient failure (network, 5xx, 429, timeout).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates retrying cannot help (auth, malformed request, cancellation).
	ErrorClassFatal
	// ErrorClassUnknown indicates the error matched no known pattern.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StatusError is returned by provider adapters for unexpected HTTP statuses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClassifyLookupError classifies a lookup error into retryable vs fatal.
//
// Fatal errors:
//   - caller cancellation
//   - 4xx statuses other than 429 (bad credentials, malformed request)
//   - invalid client / invalid token responses from the token endpoint
//
// Retryable errors:
//   - per-attempt timeouts and network errors
//   - 429 and 5xx statuses
//
// Anything else is unknown and treated as retryable by RetryingLookup.
func ClassifyLookupError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassRetryable
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.Retryable() {
			return ErrorClassRetryable
		}
		return ErrorClassFatal
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ErrorClassRetryable
	}

	lower := strings.ToLower(err.Error())
	for _, p := range []string{"invalid_client", "invalid client", "invalid token", "unauthorized", "forbidden", "malformed"} {
		if strings.Contains(lower, p) {
			return ErrorClassFatal
		}
	}
	for _, p := range []string{"connection reset", "connection refused", "timeout", "eof", "no such host", "temporarily unavailable"} {
		if strings.Contains(lower, p) {
			return ErrorClassRetryable
		}
	}
	return ErrorClassUnknown
}
