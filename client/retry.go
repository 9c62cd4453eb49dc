package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// RetryConfig controls transport-level retries.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay before the first retry, in milliseconds.
	InitialDelay int
	// MaxDelay caps the backoff, in milliseconds.
	MaxDelay int
	// BackoffMultiplier grows the delay between attempts.
	BackoffMultiplier float64
	// Retryable decides whether an error is worth retrying.
	Retryable func(error) bool
	// OnRetry is called before each retry.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the default backoff policy.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1000,
		MaxDelay:          10000,
		BackoffMultiplier: 2.0,
		Retryable:         isRetryableError,
	}
}

// isRetryableError reports whether an error looks like a transient
// transport condition. JSON-RPC errors are never retried here; the caller
// owns chain-level classification.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isRetryableHTTPStatus reports whether an HTTP status is worth retrying:
// server errors and rate limiting.
func isRetryableHTTPStatus(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600 || statusCode == 429
}

func backoffDelay(attempt int, config *RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if max := float64(config.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay) * time.Millisecond
}

// withRetry runs fn until it succeeds, the error is not retryable, the
// attempts run out, or the context is cancelled.
func withRetry(ctx context.Context, fn func() error, config *RetryConfig) error {
	if config == nil {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= config.MaxRetries {
			break
		}

		retryable := config.Retryable
		if retryable == nil {
			retryable = isRetryableError
		}
		if !retryable(err) {
			return err
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt, config)):
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
