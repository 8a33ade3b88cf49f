package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrMalformedResponse is wrapped by UpstreamError when a 2xx body does not
// carry choices[0].message.content.
var ErrMalformedResponse = errors.New("malformed response envelope")

// UpstreamError is returned for a non-success status or a malformed envelope.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, truncate(e.Body, 300))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError is returned when a call exceeds its deadline.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("analysis call timed out after %s", e.Timeout)
	}
	return "analysis call timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError is returned when the service could not be reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthError checks if an error is an authentication failure.
func IsAuthError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && (ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusForbidden)
}

// IsRateLimited checks if an error is a 429 response.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusTooManyRequests
}

// IsTimeout checks if an error is a call timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsRetryable reports whether a caller may reasonably try again: rate limits
// and server-side failures. Auth errors, timeouts and malformed envelopes are
// not retryable.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500
}

// classify maps an error from the HTTP round trip to the typed errors.
func classify(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Timeout: timeout, Err: err}
	}
	return &TransportError{Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
