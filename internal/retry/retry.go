// Package retry runs an operation under an explicit retry policy. The policy
// is a plain value so call sites declare their budgets up front, and the
// sleeper is injectable so tests never wait on a real clock.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation may be retried: total attempts, the fixed
// delay between attempts, and an optional per-attempt timeout applied to the
// context handed to the operation.
type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

// Sleeper is satisfied by time.Sleep; tests substitute a fake.
type Sleeper func(d time.Duration)

// Do runs op up to p.MaxAttempts times, sleeping p.Delay between attempts.
// It returns nil on the first success, the last error otherwise. A cancelled
// parent context stops further attempts immediately.
func Do(ctx context.Context, p Policy, sleep Sleeper, op func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(p.Delay)
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
