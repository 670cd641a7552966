package network

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy says which responses the registry client retries and
// how long it waits between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the
	// first. Zero means retry forever.
	MaxAttempts int

	// DefaultWait is used when the server sends no usable
	// Retry-After header.
	DefaultWait time.Duration

	// MaxWait caps any single wait. Zero means no cap.
	MaxWait time.Duration

	// Retryable decides whether a status code is retried. If nil,
	// only 429 Too Many Requests is retried.
	Retryable func(statusCode int) bool
}

// DefaultRetryPolicy retries 429 responses ten times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		DefaultWait: 5 * time.Second,
		MaxWait:     5 * time.Minute,
	}
}

// ShouldRetry returns true if a response with statusCode should be
// retried.
func (p RetryPolicy) ShouldRetry(statusCode int) bool {
	if p.Retryable != nil {
		return p.Retryable(statusCode)
	}
	return statusCode == http.StatusTooManyRequests
}

// Exhausted returns true if attempt was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// WaitFor returns how long to sleep given the value of a
// Retry-After header.
func (p RetryPolicy) WaitFor(retryAfter string, now time.Time) time.Duration {
	wait, ok := ParseRetryAfter(retryAfter, now)
	if !ok {
		wait = p.DefaultWait
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// ParseRetryAfter parses a Retry-After header, which may be a number
// of seconds or an HTTP date. A date in the past means no wait.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	wait := when.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
