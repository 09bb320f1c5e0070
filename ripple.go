package ripple

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/bus"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/store"
)

// DefaultShutdownTimeout bounds how long Run waits for in-flight handler runs after its context ends.
const DefaultShutdownTimeout = 5 * time.Second

// Engine is the high-level entry point for the Ripple library.
// It wires a dispatch bus, a reducer store and a composition root into one timeline:
// every dispatched action is reduced, offered to the handlers, then seen by subscribers.
type Engine struct {
	bus   *bus.Bus
	store *store.Store
	root  *epic.Root

	sources  []epic.Source
	reducers []store.Option
	initial  domain.State
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	decode   func(domain.Action) (domain.Action, error)
	shutdown time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
	closed atomic.Bool

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithHandlers registers handler sources (handlers, features, sets).
func WithHandlers(sources ...epic.Source) Option {
	return func(e *Engine) {
		e.sources = append(e.sources, sources...)
	}
}

// WithReducer installs a reducer for the state slice at key.
func WithReducer(key string, r store.Reducer) Option {
	return func(e *Engine) {
		e.reducers = append(e.reducers, store.WithReducer(key, r))
	}
}

// WithReducers installs several reducers keyed by state path.
func WithReducers(reducers map[string]store.Reducer) Option {
	return func(e *Engine) {
		for key, r := range reducers {
			e.reducers = append(e.reducers, store.WithReducer(key, r))
		}
	}
}

// WithState sets the initial snapshot.
func WithState(s domain.State) Option {
	return func(e *Engine) {
		e.initial = s
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDecoder converts externally dispatched actions before they enter the timeline,
// typically registry.Registry.Decode turning JSON payloads into typed values.
func WithDecoder(fn func(domain.Action) (domain.Action, error)) Option {
	return func(e *Engine) {
		e.decode = fn
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.shutdown = d
	}
}

// WithName labels the engine in logs.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New initializes a new Ripple Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		initial:  domain.EmptyState(),
		shutdown: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil down, which would overwrite defaults)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}

	eng.store = store.New(eng.initial, append(eng.reducers, store.WithLogger(eng.logger))...)
	eng.bus = bus.New(
		bus.WithLogger(eng.logger),
		bus.WithStage(eng.store.Reduce),
	)
	eng.root = epic.NewRoot(
		epic.WithLogger(eng.logger),
		epic.WithHooks(eng.hooks),
	)
	eng.root.Attach(eng.store, eng.bus)
	eng.bus.Stage(eng.root.Offer)

	if err := eng.root.Register(eng.sources...); err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}
	return eng, nil
}

// Run processes actions until ctx is done, then cancels in-flight handler runs
// and waits for them up to the shutdown timeout. An engine runs once; later calls
// return domain.ErrBusStopped.
func (e *Engine) Run(ctx context.Context) error {
	if e.closed.Load() {
		return domain.ErrBusStopped
	}
	e.logger.Debug("engine started", "handlers", len(e.root.Handlers()))
	runErr := e.bus.Run(ctx)
	if errors.Is(runErr, domain.ErrBusRunning) {
		return runErr
	}

	e.closed.Store(true)
	closeCtx, cancel := context.WithTimeout(context.Background(), e.shutdown)
	defer cancel()
	closeErr := e.root.Close(closeCtx)
	e.logger.Debug("engine stopped", "dispatched", e.bus.Stats().Dispatched)
	return errors.Join(runErr, closeErr)
}

// Start runs the engine in the background until Stop is called or ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return domain.ErrBusStopped
	}
	if e.done != nil {
		return domain.ErrBusRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan error, 1)
	go func(done chan<- error) {
		done <- e.Run(ctx)
	}(e.done)
	return nil
}

// Stop ends a background run started with Start and waits for it until ctx is done.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case err := <-done:
		e.mu.Lock()
		e.cancel, e.done = nil, nil
		e.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch enqueues actions. Actions without metadata get a fresh id and the external origin.
func (e *Engine) Dispatch(acts ...domain.Action) error {
	prepared := make([]domain.Action, 0, len(acts))
	for _, act := range acts {
		if act.Type == "" {
			return errors.New("dispatch: action without type")
		}
		if act.Meta.ID == "" {
			act = domain.NewAction(act.Type, act.Payload)
		}
		if e.decode != nil {
			decoded, err := e.decode(act)
			if err != nil {
				return fmt.Errorf("dispatch %s: %w", act.Type, err)
			}
			act = decoded
		}
		prepared = append(prepared, act)
	}
	return e.bus.Dispatch(prepared...)
}

// Subscribe observes every action after it was reduced and offered to the handlers.
func (e *Engine) Subscribe(fn func(ctx context.Context, act domain.Action)) func() {
	return e.bus.Subscribe(fn)
}

// State returns the current snapshot.
func (e *Engine) State() domain.State {
	return e.store.Get()
}

// Replace atomically swaps the handler set; see epic.Root.Replace.
func (e *Engine) Replace(sources ...epic.Source) error {
	return e.root.Replace(sources...)
}

// Handlers describes the registered handlers.
func (e *Engine) Handlers() []epic.Info {
	return e.root.Handlers()
}

// Root exposes the composition root, for hosts that need more than the facade offers.
func (e *Engine) Root() *epic.Root {
	return e.root
}

// Stats returns the bus counters.
func (e *Engine) Stats() bus.Stats {
	return e.bus.Stats()
}
