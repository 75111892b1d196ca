// SPDX-License-Identifier: Apache-2.0
// Package resilience provides retry with exponential backoff for executives
// that want to recover from failed skill executions. The skill contract
// itself never retries.
package resilience

import (
	"context"
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/jllopis/pillar/pkg/errors"
)

// RetryConfig controls how often and how patiently an operation is retried.
type RetryConfig struct {
	// MaxAttempts counts the first call. Values below 1 mean a single call.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the wait. Zero means no cap.
	MaxDelay time.Duration
	// Multiplier grows the wait between attempts. Zero means 2.
	Multiplier float64
	// Jitter in [0, 1] spreads each wait by up to ±Jitter of its value.
	Jitter float64
	// IsRecoverable decides whether err is worth another attempt.
	IsRecoverable func(error) bool
	// OnRetry runs after the wait and before attempt (zero-based).
	OnRetry func(attempt int, lastErr error)
}

// DefaultRetryConfig retries up to three times, starting at 100ms, and
// honors PillarError.Recoverable.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2,
		Jitter:        0.1,
		IsRecoverable: Recoverable,
	}
}

func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig {
	rc.MaxAttempts = n
	return rc
}

func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

func (rc RetryConfig) WithMaxDelay(d time.Duration) RetryConfig {
	rc.MaxDelay = d
	return rc
}

func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

func (rc RetryConfig) WithOnRetry(fn func(attempt int, lastErr error)) RetryConfig {
	rc.OnRetry = fn
	return rc
}

// Recoverable follows PillarError.Recoverable. Foreign errors are
// recoverable; narrow that with WithIsRecoverable or RetryOnCodes.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	var pe *errors.PillarError
	if stderrors.As(err, &pe) {
		return pe.Recoverable
	}
	return true
}

// RetryOnCodes returns a predicate that retries only PillarErrors carrying
// one of codes.
func RetryOnCodes(codes ...errors.ErrorCode) func(error) bool {
	return func(err error) bool {
		for _, code := range codes {
			if errors.HasCode(err, code) {
				return true
			}
		}
		return false
	}
}

// Do calls fn until it succeeds, returns an unrecoverable error or runs out
// of attempts. The last error is returned as is. Cancellation while waiting
// yields CONTEXT_LOST.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	attempts := max(rc.MaxAttempts, 1)
	recoverable := rc.IsRecoverable
	if recoverable == nil {
		recoverable = Recoverable
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := wait(ctx, rc.Backoff(attempt)); err != nil {
				return errors.New(errors.CodeContextLost, "context canceled during retry", err).
					WithContext("attempt", attempt).
					WithContext("max_attempts", attempts).
					WithContext("last_error", lastErr.Error())
			}
			if rc.OnRetry != nil {
				rc.OnRetry(attempt, lastErr)
			}
		}
		lastErr = fn()
		if lastErr == nil || !recoverable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Retry is Do for functions that return a value.
func Retry[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := rc.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

// Backoff returns the wait before attempt (one-based for the first retry).
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	multiplier := rc.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	delay := float64(rc.InitialDelay)
	for range attempt - 1 {
		delay *= multiplier
		if rc.MaxDelay > 0 && delay >= float64(rc.MaxDelay) {
			break
		}
	}
	if rc.MaxDelay > 0 {
		delay = min(delay, float64(rc.MaxDelay))
	}
	if rc.Jitter > 0 {
		delay += delay * rc.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(max(delay, 0))
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
