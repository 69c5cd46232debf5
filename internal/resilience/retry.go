package resilience

import (
	"math"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry with exponential backoff.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry policy used for upstream sends.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retry executes fn until it succeeds, isRetryable rejects the error, or the
// attempts run out. The last error is returned.
func Retry(fn func() error, config *RetryConfig, isRetryable func(error) bool) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		if attempt < config.MaxAttempts-1 {
			time.Sleep(CalculateBackoff(attempt, config.InitialBackoff, config.MaxBackoff, config.BackoffMultiplier))
		}
	}
	return lastErr
}

// CalculateBackoff returns the backoff duration for the given attempt.
func CalculateBackoff(attempt int, initialBackoff, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

var retryableErrorFragments = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"transport is closing",
	"unavailable",
	"network is unreachable",
	"no route to host",
	"deadline exceeded",
	"timeout",
	"i/o timeout",
	"too many connections",
	"rate limit",
}

// IsRetryableNetworkError reports whether err looks like a transient network
// failure worth retrying.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range retryableErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
