// Package retry wraps asynchronous operations with a bounded attempt budget.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int

	// Delay is the pause between attempts.
	Delay time.Duration

	// Exponential doubles the delay after each failed attempt.
	Exponential bool

	// Classify decides whether an error is worth another attempt. When nil,
	// every error except context cancellation is retried.
	Classify func(error) bool
}

// DefaultPolicy matches the auto-save path: three fixed-delay attempts.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 500 * time.Millisecond}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.Delay
	if p.Exponential {
		for n := 0; n < attempt; n++ {
			d *= 2
		}
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return err != nil
}

// Do invokes op until it succeeds or the attempt budget is exhausted. The
// first successful result is returned; otherwise the final failure is
// propagated, wrapped with the attempt count. Delays between attempts abort
// early when ctx is cancelled.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.attempts()
	for i := 0; i < attempts; i++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.retryable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}
		if sleepErr := sleep(ctx, p.delay(i)); sleepErr != nil {
			return zero, sleepErr
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// sleep pauses for d, returning early if ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
