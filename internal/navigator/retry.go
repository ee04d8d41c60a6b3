package navigator

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                        // total attempts including initial try
	Delay       time.Duration                              // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(error) bool                           // predicate; if nil, RetryableError is used
	DelayFunc   func(attempt int, err error) time.Duration // dynamic backoff; attempt is 1-based
}

// RetryableError reports whether a failed page load is worth repeating.
// Cancellation and client errors (4xx) are not.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrReleased) || errors.Is(err, ErrNoPage) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// WithRetry wraps a Navigator so every session retries failed loads.
func WithRetry(nav Navigator, policy RetryPolicy) Navigator {
	if policy.MaxAttempts <= 1 {
		return nav // no retries needed
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = RetryableError
	}
	return &retryNavigator{inner: nav, policy: policy}
}

type retryNavigator struct {
	inner  Navigator
	policy RetryPolicy
}

func (r *retryNavigator) Acquire(ctx context.Context) (Session, error) {
	s, err := r.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &retrySession{Session: s, policy: r.policy}, nil
}

type retrySession struct {
	Session
	policy RetryPolicy
}

func (r *retrySession) Navigate(ctx context.Context, url string) error {
	return r.do(ctx, func(ctx context.Context) error { return r.Session.Navigate(ctx, url) })
}

func (r *retrySession) Refresh(ctx context.Context) error {
	return r.do(ctx, r.Session.Refresh)
}

func (r *retrySession) do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		// Don't delay after the last attempt.
		if attempt < r.policy.MaxAttempts {
			if !r.policy.ShouldRetry(lastErr) {
				return lastErr
			}
			var delay time.Duration
			if r.policy.DelayFunc != nil {
				delay = r.policy.DelayFunc(attempt, lastErr)
			} else {
				delay = r.policy.Delay
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return lastErr
				}
			}
		}
	}
	return lastErr
}
