// Package epictest drives handlers with scripted actions and collects what they emit,
// for example-driven tests.
//
//	epictest.Drive(t, catalog.Handlers(provider), epictest.Count(2),
//		[]domain.Action{catalog.RefreshLayers(layers, opts)},
//		func(actions []domain.Action) {
//			assert.Equal(t, catalog.ActionRefreshError, actions[1].Type)
//		},
//		epictest.WithState(state),
//	)
//
// Use it inside testing/synctest bubbles so debounce windows, retry delays and race
// deadlines elapse in virtual time.
package epictest

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/store"
)

const (
	// ActionTimeout is appended by WithTimeout when a handler stays silent.
	ActionTimeout = "epictest/TIMEOUT"

	// ActionComplete is appended by WithCompleteMarker once every run has finished.
	ActionComplete = "epictest/COMPLETE"

	actionDelay = "epictest/DELAY"
)

// DefaultDeadline bounds how long Drive waits for output.
const DefaultDeadline = 5 * time.Second

// Delay is a pseudo-input pausing the script for d before the next input is fed.
func Delay(d time.Duration) domain.Action {
	return domain.Action{Type: actionDelay, Payload: d}
}

func delayOf(act domain.Action) (time.Duration, bool) {
	if act.Type != actionDelay {
		return 0, false
	}
	d, _ := act.Payload.(time.Duration)
	return d, true
}

// Stop decides when collection ends.
type Stop struct {
	count int
	pred  func(domain.Action) bool
}

// Count stops after exactly n actions.
func Count(n int) Stop {
	return Stop{count: n}
}

// Until stops at the first action accepted by pred, inclusive.
func Until(pred func(domain.Action) bool) Stop {
	return Stop{pred: pred}
}

// UntilType stops at the first action of one of types, inclusive.
func UntilType(types ...string) Stop {
	return Until(func(a domain.Action) bool { return a.Is(types...) })
}

func (s Stop) cut(acts []domain.Action) ([]domain.Action, bool) {
	if s.pred != nil {
		for i, a := range acts {
			if s.pred(a) {
				return acts[:i+1], true
			}
		}
		return acts, false
	}
	if len(acts) >= s.count {
		return acts[:s.count], true
	}
	return acts, false
}

func (s Stop) String() string {
	if s.pred != nil {
		return "until predicate"
	}
	return fmt.Sprintf("%d actions", s.count)
}

type options struct {
	state    domain.StateAccessor
	initial  domain.State
	deadline time.Duration
	complete bool
	done     func()
	reducers []store.Option
	inputs   []domain.Action
	logger   *slog.Logger
}

// Option configures Drive and DriveCombined.
type Option func(*options)

// WithState sets a fixed snapshot for Drive, or the initial store state for DriveCombined.
func WithState(s domain.State) Option {
	return func(o *options) {
		o.initial = s
		o.state = domain.Static(s)
	}
}

// WithStateFunc lets Drive read state from a function, re-evaluated on every access.
func WithStateFunc(fn func() domain.State) Option {
	return func(o *options) {
		o.state = domain.StateFunc(fn)
	}
}

// WithDeadline overrides DefaultDeadline.
func WithDeadline(d time.Duration) Option {
	return func(o *options) {
		o.deadline = d
	}
}

// WithCompleteMarker appends ActionComplete once all inputs were fed and no run is in flight.
func WithCompleteMarker() Option {
	return func(o *options) {
		o.complete = true
	}
}

// WithDone is called after the assertion.
func WithDone(fn func()) Option {
	return func(o *options) {
		o.done = fn
	}
}

// WithReducer installs a reducer in the store used by DriveCombined.
func WithReducer(key string, r store.Reducer) Option {
	return func(o *options) {
		o.reducers = append(o.reducers, store.WithReducer(key, r))
	}
}

// WithInputs sets the actions DriveCombined dispatches once the loop is running.
func WithInputs(acts ...domain.Action) Option {
	return func(o *options) {
		o.inputs = append(o.inputs, acts...)
	}
}

// WithLogger sets the logger of the root under test.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		initial:  domain.EmptyState(),
		deadline: DefaultDeadline,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.state == nil {
		o.state = domain.Static(o.initial)
	}
	return o
}

// collector records emitted actions and signals each arrival.
type collector struct {
	mu      sync.Mutex
	acts    []domain.Action
	changed chan struct{}
}

func newCollector() *collector {
	return &collector{changed: make(chan struct{}, 1)}
}

func (c *collector) Dispatch(acts ...domain.Action) error {
	c.mu.Lock()
	c.acts = append(c.acts, acts...)
	c.mu.Unlock()
	select {
	case c.changed <- struct{}{}:
	default:
	}
	return nil
}

func (c *collector) snapshot() []domain.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Action(nil), c.acts...)
}
