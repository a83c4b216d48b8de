package request

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned while a provider's breaker refuses calls.
	ErrCircuitOpen = errors.New("provider circuit open")
	// ErrRetriesExceeded is returned when every attempt hit a retryable failure.
	ErrRetriesExceeded = errors.New("max retries exceeded")
)

// StatusError is a non-retryable HTTP error response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// isClientError reports whether err is a 4xx answer that says nothing about provider health.
func isClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}
