package epic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, the first one included. Values below 1 mean 1.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to get the wait before the next attempt.
	BaseDelay time.Duration

	// Notify is called after each failed attempt that will be retried.
	Notify func(err error, attempt int, next time.Duration)
}

// linearBackOff waits base*n before the n-th retry.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Retry calls fn until it succeeds, returns a Permanent error, panics or the attempts are exhausted.
// The last error is returned. A cancelled ctx stops waiting and yields domain.ErrCancelled.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	schedule := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: p.BaseDelay}, uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && (isPanic(err) || isCancelled(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if p.Notify != nil {
		notify = func(err error, next time.Duration) {
			p.Notify(err, attempt, next)
		}
	}

	err := backoff.RetryNotify(op, schedule, notify)
	if err != nil && ctx.Err() != nil && !isCancelled(err) && errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return err
}

// RetryWithBackoff re-runs a failing body up to maxAttempts times in total, waiting
// baseDelay*attempt between attempts. Exhaustion surfaces the last error. Inner defaults to Concurrent.
func RetryWithBackoff(maxAttempts int, baseDelay time.Duration, inner ...Strategy) Strategy {
	return retryStrategy{
		policy: RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay},
		inner:  innerOr(inner, Concurrent()),
	}
}

type retryStrategy struct {
	policy RetryPolicy
	inner  Strategy
}

func (r retryStrategy) String() string {
	return fmt.Sprintf("retry(%dx%s, %s)", r.policy.MaxAttempts, r.policy.BaseDelay, r.inner)
}

func (r retryStrategy) newScheduler(spawn spawnFunc) scheduler {
	return r.inner.newScheduler(spawn)
}

func (r retryStrategy) wrap(next stage) stage {
	inner := r.inner.wrap(next)
	return func(s *Scope) func() error {
		first := inner(s)
		return func() error {
			policy := r.policy
			policy.Notify = func(err error, attempt int, next time.Duration) {
				s.Logger().Debug("retrying handler body", "attempt", attempt, "delay", next, "err", err)
			}
			used := false
			return Retry(s.Context(), policy, func(context.Context) error {
				if !used {
					used = true
					return first()
				}
				return inner(s)()
			})
		}
	}
}
