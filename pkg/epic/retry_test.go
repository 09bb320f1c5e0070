package epic_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_LinearScheduleUntilSuccess(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var attempts []time.Duration
		start := time.Now()
		var delays []time.Duration

		err := epic.Retry(context.Background(), epic.RetryPolicy{
			MaxAttempts: 4,
			BaseDelay:   100 * time.Millisecond,
			Notify: func(err error, attempt int, next time.Duration) {
				delays = append(delays, next)
			},
		}, func(ctx context.Context) error {
			attempts = append(attempts, time.Since(start))
			if len(attempts) < 3 {
				return errors.New("transient")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, []time.Duration{0, 100 * time.Millisecond, 300 * time.Millisecond}, attempts)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
	})
}

func TestRetry_ExhaustionReturnsLastError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		calls := 0
		err := epic.Retry(context.Background(), epic.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			func(ctx context.Context) error {
				calls++
				return errors.New("still down")
			})

		assert.EqualError(t, err, "still down")
		assert.Equal(t, 3, calls)
	})
}

func TestRetry_PermanentIsNotRetried(t *testing.T) {
	calls := 0
	err := epic.Retry(context.Background(), epic.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			return epic.Permanent(domain.ErrStateNotFound)
		})

	assert.ErrorIs(t, err, domain.ErrStateNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledWhileWaiting(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		err := epic.Retry(ctx, epic.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
			func(ctx context.Context) error { return errors.New("down") })

		assert.ErrorIs(t, err, domain.ErrCancelled)
	})
}

func TestRetryWithBackoff_BracketedExhaustion(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		root, rec := newRoot(t, nil, epic.Handler{
			Name:     "capabilities",
			Types:    []string{actionFetch},
			Strategy: epic.RetryWithBackoff(3, 10*time.Millisecond),
			Bracket:  &epic.Bracket{Name: "capabilities"},
			Body: func(s *epic.Scope) error {
				calls.Add(1)
				return errors.New("503")
			},
		})

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []string{domain.ActionLoading, domain.ActionError, domain.ActionLoading}, rec.types(),
			"one bracket around every attempt and a single terminal error")
	})
}

func TestRetryWithBackoff_PanicIsNeverRetried(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		root, rec := newRoot(t, nil, epic.Handler{
			Name:     "defect",
			Types:    []string{actionFetch},
			Strategy: epic.RetryWithBackoff(5, time.Millisecond),
			Body: func(s *epic.Scope) error {
				calls.Add(1)
				panic("index out of range")
			},
		})

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []string{domain.ActionHandlerHalted}, rec.types())
	})
}

func TestRetryWithBackoff_AroundRace(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		var root *epic.Root
		h := epic.Handler{
			Name:  "describe",
			Types: []string{actionFetch},
			Strategy: epic.RetryWithBackoff(2, 10*time.Millisecond,
				epic.RaceWithTimeout(20*time.Millisecond, epic.OfType(actionDescribed), epic.Race{
					OnArrive: func(s *epic.Scope, companion domain.Action) error {
						return s.Emit(domain.NewAction(actionConfirmed, nil))
					},
				})),
			Body: func(s *epic.Scope) error {
				if calls.Add(1) == 2 {
					root.Offer(s.Context(), domain.NewAction(actionDescribed, nil))
				}
				return nil
			},
		}
		var rec *recorder
		root, rec = newRoot(t, nil, h)

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []string{actionConfirmed}, rec.types(), "the first timeout is retried, the second attempt sees the echo")
	})
}
