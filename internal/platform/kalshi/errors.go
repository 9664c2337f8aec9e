package kalshi

import (
	"errors"
	"fmt"
	"net"
)

// APIError is a non-2xx response from the exchange. 5xx responses are
// transient and eligible for retry; 4xx responses are permanent and surfaced
// to the caller immediately.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("kalshi: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("kalshi: HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// Transient reports whether the error is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// isRetryable reports whether err is a transient failure: a network timeout
// or a 5xx API error. Context cancellation is never retryable.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
