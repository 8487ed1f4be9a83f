package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/domain/ports"
)

// RetryConfig holds retry parameters for transient backend failures
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration
}

// DefaultRetryConfig returns the standard retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		MaxElapsed:   10 * time.Second,
	}
}

// CalculateRetryDelay computes exponential back-off for the given attempt
func CalculateRetryDelay(config RetryConfig, attemptCount int) time.Duration {
	delay := config.InitialDelay * time.Duration(1<<uint(attemptCount))
	if delay > config.MaxDelay || delay <= 0 {
		delay = config.MaxDelay
	}
	return delay
}

// IsRetryableError reports whether err looks transient.
// Domain errors are final.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	for _, final := range []error{
		ports.ErrNotFound, ports.ErrConflict, ports.ErrInvalidName, ports.ErrInvalidInput,
		ports.ErrLocked, ports.ErrAlreadyLocked, ports.ErrNotHolder, ports.ErrNotLocked,
		context.Canceled,
	} {
		if errors.Is(err, final) {
			return false
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "temporary") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "unavailable") ||
		strings.Contains(errMsg, "deadline exceeded")
}

// ExecuteWithRetry runs fn until it succeeds, fails with a final error or the budget runs out
func ExecuteWithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialDelay
	b.MaxInterval = config.MaxDelay
	b.MaxElapsedTime = config.MaxElapsed

	return backoff.Retry(func() error {
		err := fn()
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
