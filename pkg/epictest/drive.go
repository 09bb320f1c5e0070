package epictest

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ripple/pkg/bus"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Controller exposes the world a driven handler ran against.
type Controller struct {
	root  *epic.Root
	state domain.StateAccessor
	out   *collector
	bus   *bus.Bus
}

// State returns the current snapshot.
func (c *Controller) State() domain.State {
	return c.state.Get()
}

// Actions returns every action emitted so far, including those past the stop condition.
func (c *Controller) Actions() []domain.Action {
	return c.out.snapshot()
}

// Root returns the root under test.
func (c *Controller) Root() *epic.Root {
	return c.root
}

// Dispatch feeds more actions. With Drive they are offered directly to the root;
// with DriveCombined they go through the bus while it runs.
func (c *Controller) Dispatch(acts ...domain.Action) {
	if c.bus != nil {
		_ = c.bus.Dispatch(acts...)
		return
	}
	for _, a := range acts {
		c.root.Offer(context.Background(), a)
	}
}

// Drive offers inputs to a root built from source, collects what it emits (without feeding it
// back) until the stop condition holds, then calls assert with the collected actions in arrival order.
// The root is closed when the test ends.
func Drive(t testing.TB, source epic.Source, until Stop, inputs []domain.Action, assert func([]domain.Action), opts ...Option) *Controller {
	t.Helper()
	o := newOptions(opts)

	out := newCollector()
	root := epic.NewRoot(epic.WithLogger(o.logger))
	root.Attach(o.state, out)
	require.NoError(t, root.Register(source))
	t.Cleanup(func() { _ = root.Close(context.Background()) })

	c := &Controller{root: root, state: o.state, out: out}
	for _, in := range inputs {
		if d, ok := delayOf(in); ok {
			time.Sleep(d)
			continue
		}
		root.Offer(context.Background(), in)
	}

	collected, ok := c.await(until, o)
	if !ok {
		t.Errorf("epictest: expected %s within %s, got %d: %v", until, o.deadline, len(collected), types(collected))
	}
	if assert != nil {
		assert(collected)
	}
	if o.done != nil {
		o.done()
	}
	return c
}

func (c *Controller) await(until Stop, o *options) ([]domain.Action, bool) {
	deadline := time.NewTimer(o.deadline)
	defer deadline.Stop()
	var poll <-chan time.Time
	if o.complete {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		poll = ticker.C
	}

	marked := false
	for {
		if got, ok := until.cut(c.out.snapshot()); ok {
			return got, true
		}
		select {
		case <-c.out.changed:
		case <-poll:
			if !marked && c.root.InFlight() == 0 {
				marked = true
				_ = c.out.Dispatch(domain.NewAction(ActionComplete, nil))
			}
		case <-deadline.C:
			got, ok := until.cut(c.out.snapshot())
			return got, ok
		}
	}
}

// Callbacks observe a DriveCombined session.
type Callbacks struct {
	// OnAction sees every action on the bus, inputs included, on the loop goroutine.
	OnAction func(domain.Action)

	// OnComplete receives every action once stop fired and the loop ended.
	OnComplete func(actions []domain.Action)
}

// StopWhen returns a channel closed the first time observe sees an action accepted by pred.
func StopWhen(pred func(domain.Action) bool) (<-chan struct{}, func(domain.Action)) {
	ch := make(chan struct{})
	fired := false
	return ch, func(a domain.Action) {
		if !fired && pred(a) {
			fired = true
			close(ch)
		}
	}
}

// DriveCombined runs source on a full loop (bus, reducers, root) where every emitted action is fed
// back, to test causal chains across handlers. It returns when stop fires or the deadline passes.
func DriveCombined(t testing.TB, source epic.Source, stop <-chan struct{}, cb Callbacks, opts ...Option) *Controller {
	t.Helper()
	o := newOptions(opts)

	st := store.New(o.initial, o.reducers...)
	b := bus.New(bus.WithLogger(o.logger), bus.WithStage(st.Reduce))
	root := epic.NewRoot(epic.WithLogger(o.logger))
	root.Attach(st, b)
	require.NoError(t, root.Register(source))
	b.Stage(root.Offer)

	out := newCollector()
	b.Subscribe(func(_ context.Context, a domain.Action) {
		_ = out.Dispatch(a)
		if cb.OnAction != nil {
			cb.OnAction(a)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })

	for _, in := range o.inputs {
		if d, ok := delayOf(in); ok {
			time.Sleep(d)
			continue
		}
		require.NoError(t, b.Dispatch(in))
	}

	deadline := time.NewTimer(o.deadline)
	select {
	case <-stop:
	case <-deadline.C:
		t.Errorf("epictest: stop did not fire within %s, saw %v", o.deadline, types(out.snapshot()))
	}
	deadline.Stop()

	cancel()
	require.NoError(t, g.Wait())
	require.NoError(t, root.Close(context.Background()))

	if cb.OnComplete != nil {
		cb.OnComplete(out.snapshot())
	}
	if o.done != nil {
		o.done()
	}
	return &Controller{root: root, state: st, out: out}
}

// WithTimeout adds a handler that emits ActionTimeout once window has elapsed without input.
// Driving with Count(1) then asserts that a handler correctly stays silent.
func WithTimeout(source epic.Source, window time.Duration) epic.Set {
	return epic.Merge(source, epic.Handler{
		Name:     "epictest/timeout",
		Filter:   func(a domain.Action) bool { return !a.Is(ActionTimeout, ActionComplete) },
		Strategy: epic.LatestWins(),
		Body: func(s *epic.Scope) error {
			if err := s.Sleep(window); err != nil {
				return err
			}
			return s.Emit(domain.NewAction(ActionTimeout, nil))
		},
	})
}

// Types lists action types, handy in assertions.
func Types(acts []domain.Action) []string {
	return types(acts)
}

func types(acts []domain.Action) []string {
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.Type)
	}
	return out
}
