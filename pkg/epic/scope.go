package epic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// Scope is what a handler body sees: the triggering action, a read-only state accessor
// and a one-way emission channel. It grants no way to mutate state.
type Scope struct {
	run    *Run
	inst   *instance
	state  domain.StateAccessor
	logger *slog.Logger

	mu           sync.Mutex
	brackets     []*openBracket
	expectations []*Expectation
}

func newScope(in *instance, run *Run) *Scope {
	s := &Scope{
		run:   run,
		inst:  in,
		state: in.root.accessor(),
		logger: in.root.logger.With(
			"handler", in.handler.Name,
			"action", run.action.Type,
		),
	}
	run.onCancel = s.closeOpen
	return s
}

// Context is cancelled when the run is cancelled or the root closes.
func (s *Scope) Context() context.Context {
	return s.run.ctx
}

// Action returns the triggering action.
func (s *Scope) Action() domain.Action {
	return s.run.action
}

// Key returns the correlation key of the run.
func (s *Scope) Key() string {
	return s.run.key
}

// State returns the current snapshot. Each call reads the latest state.
func (s *Scope) State() domain.State {
	return s.state.Get()
}

// Logger returns a logger annotated with the handler and action.
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Emit dispatches actions in order, attributed to the handler and caused by the trigger.
// It returns domain.ErrCancelled once the run is cancelled.
func (s *Scope) Emit(acts ...domain.Action) error {
	return s.run.gate(func() error {
		return s.emit(acts...)
	})
}

// emit requires the run's gate.
func (s *Scope) emit(acts ...domain.Action) error {
	for _, act := range acts {
		if err := s.inst.root.emit(act.CausedBy(s.inst.handler.Name, s.run.action)); err != nil {
			return err
		}
	}
	return nil
}

// Sleep waits for d unless the run is cancelled first.
func (s *Scope) Sleep(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.run.ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrCancelled, s.run.ctx.Err())
	}
}

// Expect registers interest in the next action accepted by m. Register before triggering
// whatever produces the companion action so the echo cannot be missed.
// Expectations are released when the run ends.
func (s *Scope) Expect(m Matcher) *Expectation {
	e := s.inst.root.expect(m)
	s.mu.Lock()
	s.expectations = append(s.expectations, e)
	s.mu.Unlock()
	return e
}

// Await waits for the next action accepted by m for at most deadline.
func (s *Scope) Await(m Matcher, deadline time.Duration) (domain.Action, error) {
	return s.Expect(m).Wait(s.Context(), deadline)
}

// Bracket runs fn between the start and end markers of b.
// A failure emits the error action before the end marker. The end marker is emitted
// exactly once on every path, panics included; a cancelled run emits it at cancellation
// and nothing after it.
func (s *Scope) Bracket(b Bracket, fn func() error) (err error) {
	ob, err := s.open(b)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = s.inst.recovered(r)
		}
		if err != nil && !isCancelled(err) {
			_ = s.Emit(b.fail(err))
		}
		s.close(ob)
		s.pop(ob)
	}()
	return fn()
}

// Settle emits the end marker of the innermost open bracket now, for flows whose
// trailing results should not keep the operation busy. It is idempotent.
func (s *Scope) Settle() {
	s.mu.Lock()
	var ob *openBracket
	if n := len(s.brackets); n > 0 {
		ob = s.brackets[n-1]
	}
	s.mu.Unlock()
	if ob != nil {
		s.close(ob)
	}
}

// open emits the start marker and records the bracket under the same gate,
// so a concurrent Cancel either sees the bracket or prevents it.
func (s *Scope) open(b Bracket) (*openBracket, error) {
	ob := &openBracket{b: b}
	err := s.run.gate(func() error {
		if err := s.emit(b.start()); err != nil {
			return err
		}
		s.mu.Lock()
		s.brackets = append(s.brackets, ob)
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ob, nil
}

func (s *Scope) pop(ob *openBracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.brackets) - 1; i >= 0; i-- {
		if s.brackets[i] == ob {
			s.brackets = append(s.brackets[:i], s.brackets[i+1:]...)
			return
		}
	}
}

func (s *Scope) close(ob *openBracket) {
	_ = s.run.gate(func() error {
		if ob.closed {
			return nil
		}
		ob.closed = true
		return s.emit(ob.b.end())
	})
}

// closeOpen ends every open bracket, innermost first. It runs under the run's gate.
func (s *Scope) closeOpen() {
	s.mu.Lock()
	open := append([]*openBracket(nil), s.brackets...)
	s.mu.Unlock()
	for i := len(open) - 1; i >= 0; i-- {
		if ob := open[i]; !ob.closed {
			ob.closed = true
			if err := s.emit(ob.b.end()); err != nil {
				s.logger.Debug("dropping end marker of cancelled run", "bracket", ob.b.Name, "err", err)
			}
		}
	}
}

func (s *Scope) release() {
	s.mu.Lock()
	exps := s.expectations
	s.expectations = nil
	s.mu.Unlock()
	for _, e := range exps {
		e.Cancel()
	}
}
