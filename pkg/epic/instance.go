package epic

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// instance is a registered handler: its descriptor, scheduler and live runs.
type instance struct {
	handler Handler
	feature string
	root    *Root

	strategy Strategy
	stage    stage

	halted atomic.Bool

	mu    sync.Mutex
	sched scheduler
	runs  map[*Run]struct{}
}

func newInstance(root *Root, h Handler, feature string) *instance {
	in := &instance{
		handler:  h,
		feature:  feature,
		root:     root,
		strategy: h.strategy(),
		runs:     make(map[*Run]struct{}),
	}
	in.sched = in.strategy.newScheduler(in.spawn)
	in.stage = in.strategy.wrap(in.body)
	return in
}

func (in *instance) offer(act domain.Action) {
	if in.halted.Load() {
		return
	}
	in.scheduler().offer(act, in.handler.key(act))
}

func (in *instance) scheduler() scheduler {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sched
}

// body is the innermost stage: it runs the handler body and turns panics into *PanicError
// so decorators never retry a defect.
func (in *instance) body(s *Scope) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = in.recovered(r)
			}
		}()
		return in.handler.Body(s)
	}
}

func (in *instance) recovered(r any) error {
	return &PanicError{Handler: in.handler.Name, Value: r, Stack: debug.Stack()}
}

func (in *instance) spawn(act domain.Action, key string, onDone func(*Run)) *Run {
	if in.halted.Load() || !in.root.track() {
		return nil
	}
	run := newRun(in.root.ctx, in.handler.Name, key, act)
	scope := newScope(in, run)

	in.mu.Lock()
	in.runs[run] = struct{}{}
	in.mu.Unlock()

	work := in.stage(scope)
	if in.handler.Bracket != nil {
		b := *in.handler.Bracket
		inner := work
		work = func() error {
			err := scope.Bracket(b, inner)
			if err != nil && !isPanic(err) {
				// Already reported by the bracket's error action.
				return nil
			}
			return err
		}
	}

	go func() {
		defer in.root.wg.Done()
		in.execute(scope, work)

		in.mu.Lock()
		delete(in.runs, run)
		in.mu.Unlock()
		run.finish()
		if onDone != nil {
			onDone(run)
		}
	}()
	return run
}

func (in *instance) execute(s *Scope, work func() error) {
	ctx := s.Context()
	ev := &domain.RunEvent{
		Handler: in.handler.Name,
		Feature: in.feature,
		Key:     s.run.key,
		Action:  s.run.action,
	}
	hooks := in.root.hooks
	if hooks.OnRunStart != nil {
		hooks.OnRunStart(ctx, ev)
	}
	s.logger.Debug("run started", "key", s.run.key)

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = in.recovered(r)
			}
		}()
		return work()
	}()
	s.release()
	ev.Duration = time.Since(start)

	switch {
	case s.run.Cancelled() || isCancelled(err):
		ev.Err = domain.ErrCancelled
		s.logger.Debug("run cancelled", "key", s.run.key)
		if hooks.OnCancel != nil {
			hooks.OnCancel(context.WithoutCancel(ctx), ev)
		}
	case isPanic(err):
		ev.Err = err
		in.halt(s, err)
		if hooks.OnHalt != nil {
			hooks.OnHalt(context.WithoutCancel(ctx), ev)
		}
	default:
		if err != nil {
			ev.Err = &HandlerError{Handler: in.handler.Name, Action: s.run.action.Type, Err: err}
			s.logger.Warn("handler failed", "err", err)
			_ = s.Emit(domain.NewAction(domain.ActionHandlerError, domain.Failure{
				Name:    in.handler.Name,
				Message: domain.ErrorMessage(err),
				Cause:   s.run.action.Type,
			}))
		}
		if hooks.OnRunEnd != nil {
			hooks.OnRunEnd(ctx, ev)
		}
	}
}

// halt stops the handler after a defect. Siblings are not affected.
func (in *instance) halt(s *Scope, err error) {
	if !in.halted.CompareAndSwap(false, true) {
		return
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		s.logger.Error("handler halted", "panic", fmt.Sprint(pe.Value), "stack", string(pe.Stack))
	}
	_ = s.Emit(domain.NewAction(domain.ActionHandlerHalted, domain.Failure{
		Name:    in.handler.Name,
		Message: domain.ErrorMessage(err),
		Cause:   s.run.action.Type,
	}))
	in.stop()
}

// stop drops pending work and cancels every live run.
func (in *instance) stop() {
	in.scheduler().stop()
	in.mu.Lock()
	runs := make([]*Run, 0, len(in.runs))
	for r := range in.runs {
		runs = append(runs, r)
	}
	in.mu.Unlock()
	for _, r := range runs {
		r.Cancel()
	}
}

// reset returns the instance to a cold state after a feature deactivation.
func (in *instance) reset() {
	in.stop()
	sched := in.strategy.newScheduler(in.spawn)
	in.mu.Lock()
	in.sched = sched
	in.mu.Unlock()
	in.halted.Store(false)
}

func (in *instance) inFlight() int {
	in.mu.Lock()
	n := len(in.runs)
	sched := in.sched
	in.mu.Unlock()
	return n + sched.pending()
}
