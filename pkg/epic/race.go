package epic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// Expectation is a one-shot interest in a companion action arriving on the timeline.
type Expectation struct {
	root  *Root
	id    uint64
	match Matcher
	ch    chan domain.Action
}

// C delivers the companion action once it arrives.
func (e *Expectation) C() <-chan domain.Action {
	return e.ch
}

// Wait blocks until the companion arrives, deadline elapses (domain.ErrTimeout)
// or ctx is done (domain.ErrCancelled). A non-positive deadline only checks for an arrival.
func (e *Expectation) Wait(ctx context.Context, deadline time.Duration) (domain.Action, error) {
	defer e.Cancel()
	if deadline <= 0 {
		select {
		case act := <-e.ch:
			return act, nil
		default:
			return domain.Action{}, domain.ErrTimeout
		}
	}
	t := time.NewTimer(deadline)
	defer t.Stop()
	select {
	case act := <-e.ch:
		return act, nil
	case <-t.C:
		// An arrival racing the deadline still wins; exactly one outcome is reported.
		select {
		case act := <-e.ch:
			return act, nil
		default:
		}
		return domain.Action{}, fmt.Errorf("%w after %s", domain.ErrTimeout, deadline)
	case <-ctx.Done():
		return domain.Action{}, fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
	}
}

// Cancel withdraws the expectation. It is idempotent.
func (e *Expectation) Cancel() {
	e.root.untap(e.id)
}

// Race holds the two mutually exclusive continuations of RaceWithTimeout.
type Race struct {
	// OnArrive runs when the companion action arrives before the deadline.
	OnArrive func(s *Scope, companion domain.Action) error

	// OnTimeout runs when the deadline elapses first. Without it the timeout is reported as an error.
	OnTimeout func(s *Scope) error

	// Match optionally correlates a candidate companion with the triggering action,
	// so concurrent runs each wait for their own echo.
	Match func(trigger, companion domain.Action) bool
}

// RaceWithTimeout starts the body, then waits for the companion action or the deadline,
// whichever comes first, and continues with exactly one branch of race. The deadline is measured
// from the start of the run and the companion is watched from the moment the run is spawned,
// so an echo triggered by the body itself is never missed. Inner defaults to Concurrent.
func RaceWithTimeout(deadline time.Duration, companion Matcher, race Race, inner ...Strategy) Strategy {
	return raceStrategy{
		deadline:  deadline,
		companion: companion,
		race:      race,
		inner:     innerOr(inner, Concurrent()),
	}
}

type raceStrategy struct {
	deadline  time.Duration
	companion Matcher
	race      Race
	inner     Strategy
}

func (r raceStrategy) String() string {
	return fmt.Sprintf("race(%s, %s)", r.deadline, r.inner)
}

func (r raceStrategy) newScheduler(spawn spawnFunc) scheduler {
	return r.inner.newScheduler(spawn)
}

func (r raceStrategy) wrap(next stage) stage {
	inner := r.inner.wrap(next)
	return func(s *Scope) func() error {
		m := r.companion
		if r.race.Match != nil {
			trigger := s.Action()
			m = m.And(func(act domain.Action) bool { return r.race.Match(trigger, act) })
		}
		exp := s.Expect(m)
		work := inner(s)
		return func() error {
			defer exp.Cancel()
			started := time.Now()
			if err := work(); err != nil {
				return err
			}
			remaining := r.deadline - time.Since(started)
			act, err := exp.Wait(s.Context(), remaining)
			switch {
			case err == nil:
				if r.race.OnArrive != nil {
					return r.race.OnArrive(s, act)
				}
				return nil
			case errors.Is(err, domain.ErrTimeout) && r.race.OnTimeout != nil:
				return r.race.OnTimeout(s)
			default:
				return err
			}
		}
	}
}
