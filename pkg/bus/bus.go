// Package bus provides the dispatch primitive the runtime builds on: a single FIFO timeline of actions,
// re-entrant from any goroutine, delivered one at a time to ordered stages and then to subscribers.
package bus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/domain"
)

// Listener receives every dispatched action on the loop goroutine.
type Listener func(ctx context.Context, act domain.Action)

// Bus is an in-process dispatch loop.
// Dispatch never blocks and may be called from listeners, so handlers can feed actions back re-entrantly.
type Bus struct {
	mu      sync.Mutex
	queue   []domain.Action
	stopped bool

	wake    chan struct{}
	running atomic.Bool

	stages []Listener
	subs   map[uint64]Listener
	nextID uint64

	logger *slog.Logger

	dispatched atomic.Uint64
	panics     atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger configures the logger used to report listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithStage appends an ordered stage (reducers first, then the composition root).
func WithStage(l Listener) Option {
	return func(b *Bus) {
		b.stages = append(b.stages, l)
	}
}

// New creates a new Bus. Actions dispatched before Run are queued.
func New(opts ...Option) *Bus {
	b := &Bus{
		wake:   make(chan struct{}, 1),
		subs:   make(map[uint64]Listener),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stage appends an ordered stage. Stages run before subscribers, in registration order.
func (b *Bus) Stage(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages = append(b.stages, l)
}

// Subscribe registers an observer called after all stages. It returns the unsubscribe function.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Dispatch enqueues actions at the tail of the timeline.
func (b *Bus) Dispatch(acts ...domain.Action) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return domain.ErrBusStopped
	}
	b.queue = append(b.queue, acts...)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the queue until ctx is cancelled. Afterwards Dispatch returns ErrBusStopped.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return domain.ErrBusRunning
	}
	b.mu.Lock()
	b.stopped = false
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.stopped = true
		b.queue = nil
		b.mu.Unlock()
		b.running.Store(false)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		act, ok := b.next()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-b.wake:
			}
			continue
		}
		b.deliver(ctx, act)
	}
}

// Drain delivers every queued action synchronously on the caller's goroutine,
// including actions enqueued while draining. It must not be used concurrently with Run.
func (b *Bus) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		act, ok := b.next()
		if !ok {
			return n
		}
		b.deliver(ctx, act)
		n++
	}
	return n
}

// Pending returns the number of queued actions.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats returns delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Dispatched: b.dispatched.Load(),
		Panics:     b.panics.Load(),
	}
}

// Stats contains delivery counters for a bus.
type Stats struct {
	Dispatched uint64
	Panics     uint64
}

func (b *Bus) next() (domain.Action, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return domain.Action{}, false
	}
	act := b.queue[0]
	b.queue[0] = domain.Action{}
	b.queue = b.queue[1:]
	return act, true
}

func (b *Bus) deliver(ctx context.Context, act domain.Action) {
	b.mu.Lock()
	listeners := make([]Listener, 0, len(b.stages)+len(b.subs))
	listeners = append(listeners, b.stages...)
	for _, l := range b.subs {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	b.dispatched.Add(1)
	for _, l := range listeners {
		b.safeCall(ctx, l, act)
	}
}

func (b *Bus) safeCall(ctx context.Context, l Listener, act domain.Action) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.ErrorContext(ctx, "bus listener panicked",
				"action", act.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	l(ctx, act)
}
