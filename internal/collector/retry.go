package collector

import (
	"context"
	"time"
)

// RetryPolicy retries an operation a fixed number of times with a
// per-attempt backoff. Call sites inject their own policy; tests use a
// zero-delay one.
type RetryPolicy struct {
	Attempts int
	Backoff  func(attempt int) time.Duration
}

// LinearBackoff returns base × attempt, matching the collectors' fixed
// retry cadence.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// NoBackoff retries immediately.
func NoBackoff() func(int) time.Duration {
	return func(int) time.Duration { return 0 }
}

// Do runs fn until it succeeds or attempts are exhausted, sleeping between
// attempts. Context cancellation aborts the wait.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
