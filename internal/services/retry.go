package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/labeltree/internal/shared"
)

const (
	DefaultMaxAttempts = 3
	DefaultMaxBackoff  = 30 * time.Second

	// defaultRetryAfter applies when a 429 response carries no usable Retry-After header.
	defaultRetryAfter = time.Second
)

// Delay is the wait after the given failed attempt (1-based): retryAfter * 2^(attempt-1), capped at ceiling.
func Delay(attempt int, retryAfter, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}

	d := retryAfter
	for i := 1; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy retries rate-limited calls. Any error other than a rate-limit
// [shared.APIError] is returned immediately.
type RetryPolicy struct {
	MaxAttempts int
	MaxDelay    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	OnRetry     func(attempt int, delay time.Duration)
}

// DefaultRetryPolicy allows three attempts with delays capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, MaxDelay: DefaultMaxBackoff, Sleep: SleepContext}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxBackoff
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// Do calls fn until it succeeds, fails with a non-retryable error, or has been
// rate limited MaxAttempts times. The terminal error is a rate-limit
// [shared.APIError] whose RetryAfter is the last computed delay.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		apiErr, ok := shared.AsAPIError(err)
		if !ok || apiErr.Kind != shared.KindRateLimit {
			return err
		}

		delay := Delay(attempt, apiErr.RetryAfter, p.MaxDelay)
		if attempt >= p.MaxAttempts {
			return &shared.APIError{
				Kind:       shared.KindRateLimit,
				StatusCode: apiErr.StatusCode,
				Message:    fmt.Sprintf("gave up after %d attempts: %s", attempt, apiErr.Message),
				RetryAfter: delay,
			}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}
	}
}

// DoWithResult is [RetryPolicy.Do] for calls that produce a value.
func DoWithResult[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	return result, err
}
