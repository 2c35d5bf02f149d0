package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTooLarge is returned when a response exceeds MaxZipballSize.
var ErrTooLarge = errors.New("response too large")

// HTTPError is a non-2xx response from the GitHub API.
type HTTPError struct {
	StatusCode int
	Body       string
	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports a 403 or 429 response.
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying: rate limits, server
// errors and transport failures are; 422 and other client errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrTooLarge) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return true
	}
	switch {
	case httpErr.IsRateLimited():
		return true
	case httpErr.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
