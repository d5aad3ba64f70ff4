package dispatch

import (
	"fmt"
	"time"
)

// CodeRateLimitExceeded is Twitter's error code for an exhausted rate limit window
const CodeRateLimitExceeded = 88

// RateLimitError is returned when Twitter rejected the call for exceeding the rate limit
type RateLimitError struct {
	// ResetAt is zero when Twitter did not report the reset time
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "Twitter rate limit exceeded"
	}
	return fmt.Sprintf("Twitter rate limit will reset on %s", e.ResetAt.UTC().Format(time.RFC1123))
}

// APIError is any other structured error reported by Twitter
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Twitter API error %d (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// TransportError is returned when the request failed or the response could not be understood
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("Twitter request failed with HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("Twitter request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
