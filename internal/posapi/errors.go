package posapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the order API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("order api: %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("order api: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// IsRetryable reports whether err is worth retrying. Transport failures are
// retryable, as are server errors and throttling responses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

// IsNotFound reports whether the order API answered 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
