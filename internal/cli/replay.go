package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// ErrExpectationFailed is returned when an expect step times out.
var ErrExpectationFailed = errors.New("expected action did not arrive")

// ReplayResult is what a replay observed.
type ReplayResult struct {
	Actions []domain.Action
	State   domain.State
}

// Replay runs the engine of rt, plays the script against it and stops the engine.
// observe, when set, sees every action of the timeline as it is processed.
func Replay(ctx context.Context, rt *Runtime, script Script, observe func(domain.Action), logger *slog.Logger) (ReplayResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := rt.Validator.ValidateAll(script.Actions()); err != nil {
		return ReplayResult{}, fmt.Errorf("invalid script: %w", err)
	}

	log := newTimeline()
	unsubscribe := rt.Engine.Subscribe(func(_ context.Context, act domain.Action) {
		log.add(act)
		if observe != nil {
			observe(act)
		}
	})
	defer unsubscribe()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return rt.Engine.Run(gctx)
	})

	var playErr error
	g.Go(func() error {
		defer stop()
		playErr = play(gctx, rt, script, log, logger)
		if playErr == nil && script.Settle > 0 {
			playErr = sleep(gctx, script.Settle)
		}
		return nil
	})

	runErr := g.Wait()
	result := ReplayResult{Actions: log.snapshot(), State: rt.Engine.State()}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return result, playErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, runErr
}

func play(ctx context.Context, rt *Runtime, script Script, log *timeline, logger *slog.Logger) error {
	cursor := 0
	for i, st := range script.Steps {
		switch st.Kind() {
		case "dispatch":
			logger.Debug("replay dispatch", "step", i+1, "action", st.Dispatch)
			if err := rt.Engine.Dispatch(st.Action()); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		case "wait":
			if err := sleep(ctx, st.Wait); err != nil {
				return err
			}
		case "expect":
			timeout := st.Timeout
			if timeout <= 0 {
				timeout = DefaultExpectTimeout
			}
			next, err := log.await(ctx, cursor, st.Expect, timeout)
			if err != nil {
				return fmt.Errorf("step %d: %s: %w", i+1, st.Expect, err)
			}
			logger.Debug("replay expectation met", "step", i+1, "action", st.Expect)
			cursor = next
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// timeline records processed actions and wakes waiters on every new one.
type timeline struct {
	mu      sync.Mutex
	actions []domain.Action
	changed chan struct{}
}

func newTimeline() *timeline {
	return &timeline{changed: make(chan struct{})}
}

func (t *timeline) add(act domain.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, act)
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *timeline) snapshot() []domain.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Action(nil), t.actions...)
}

// await finds the first action of type actionType at or after from and returns the index after it.
func (t *timeline) await(ctx context.Context, from int, actionType string, timeout time.Duration) (int, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		t.mu.Lock()
		for i := from; i < len(t.actions); i++ {
			if t.actions[i].Type == actionType {
				t.mu.Unlock()
				return i + 1, nil
			}
		}
		from = len(t.actions)
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			return 0, fmt.Errorf("%w within %s", ErrExpectationFailed, timeout)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
