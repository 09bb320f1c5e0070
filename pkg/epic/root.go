package epic

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/domain"
)

// Sink receives the actions emitted by handlers. *bus.Bus satisfies it.
type Sink interface {
	Dispatch(acts ...domain.Action) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(acts ...domain.Action) error

// Dispatch implements Sink.
func (f SinkFunc) Dispatch(acts ...domain.Action) error {
	return f(acts...)
}

type wiring struct {
	state domain.StateAccessor
	sink  Sink
}

// Root is the composition root: the union of every registered handler, offered each action once.
// Outputs of all handlers go to one sink. Handler defects never escape it.
type Root struct {
	mu       sync.Mutex
	set      Set
	order    []*instance
	byName   map[string]*instance
	features []*featureState
	byFeat   map[string]*featureState

	wiring atomic.Pointer[wiring]

	tapMu   sync.Mutex
	taps    map[uint64]*Expectation
	nextTap uint64

	logger *slog.Logger
	hooks  domain.LifecycleHooks

	ctx    context.Context
	cancel context.CancelFunc

	life   sync.RWMutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Option configures a Root.
type Option func(*Root)

// WithLogger sets the logger used for run lifecycle and defects.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Root) {
		r.logger = logger
	}
}

// WithHooks installs lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Root) {
		r.hooks = hooks
	}
}

// WithState sets the state accessor handed to handlers.
func WithState(state domain.StateAccessor) Option {
	return func(r *Root) {
		w := *r.wiring.Load()
		w.state = state
		r.wiring.Store(&w)
	}
}

// WithSink sets where emitted actions go.
func WithSink(sink Sink) Option {
	return func(r *Root) {
		w := *r.wiring.Load()
		w.sink = sink
		r.wiring.Store(&w)
	}
}

// NewRoot creates an empty composition root.
func NewRoot(opts ...Option) *Root {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Root{
		byName: make(map[string]*instance),
		byFeat: make(map[string]*featureState),
		taps:   make(map[uint64]*Expectation),
		logger: logging.NewNop(),
		ctx:    ctx,
		cancel: cancel,
	}
	r.wiring.Store(&wiring{state: domain.Static(domain.EmptyState())})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach wires the root to a state accessor and an output sink.
func (r *Root) Attach(state domain.StateAccessor, sink Sink) {
	r.wiring.Store(&wiring{state: state, sink: sink})
}

// Register adds sources to the current handler set.
func (r *Root) Register(sources ...Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(Merge(append([]Source{r.set}, sources...)...))
}

// Replace atomically substitutes the handler set. Handlers whose name persists keep their
// instance, in-flight runs included. Removed handlers are cancelled and removed active
// features emit their cleanup actions.
func (r *Root) Replace(sources ...Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(Merge(sources...))
}

// Set returns the currently registered handler set.
func (r *Root) Set() Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set
}

// apply must be called with mu held.
func (r *Root) apply(set Set) error {
	if err := set.validate(); err != nil {
		return err
	}

	var order []*instance
	byName := make(map[string]*instance)
	adopt := func(h Handler, feature string) *instance {
		in, ok := r.byName[h.Name]
		if !ok || in.feature != feature {
			in = newInstance(r, h, feature)
		}
		order = append(order, in)
		byName[h.Name] = in
		return in
	}

	for _, h := range set.Handlers {
		adopt(h, "")
	}
	var features []*featureState
	byFeat := make(map[string]*featureState)
	for _, f := range set.Features {
		fs := &featureState{def: f}
		if prev, ok := r.byFeat[f.Name]; ok {
			fs.active = prev.active
		}
		for _, h := range f.Handlers {
			fs.members = append(fs.members, adopt(h, f.Name))
		}
		features = append(features, fs)
		byFeat[f.Name] = fs
	}

	for name, in := range r.byName {
		if kept, ok := byName[name]; !ok || kept != in {
			in.stop()
		}
	}
	for name, fs := range r.byFeat {
		if _, ok := byFeat[name]; !ok && fs.active && fs.def.OnDeactivate != nil {
			r.emitAll(name, domain.Action{}, fs.def.OnDeactivate(r.accessor().Get()))
		}
	}

	r.set = set
	r.order = order
	r.byName = byName
	r.features = features
	r.byFeat = byFeat
	return nil
}

// Offer hands act to every matching handler. It is meant to be called from a single loop
// goroutine, after reducers have applied act, and has the signature of a bus listener.
func (r *Root) Offer(ctx context.Context, act domain.Action) {
	if r.closed.Load() {
		return
	}
	if r.hooks.OnDispatch != nil {
		r.hooks.OnDispatch(ctx, &domain.DispatchEvent{Action: act})
	}
	r.deliver(act)

	state := r.accessor().Get()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncFeatures(ctx, state, act)
	for _, in := range r.order {
		if in.feature != "" && !r.byFeat[in.feature].active {
			continue
		}
		if !in.handler.matches(act) {
			continue
		}
		in.offer(act)
	}
}

// syncFeatures must be called with mu held.
func (r *Root) syncFeatures(ctx context.Context, state domain.State, cause domain.Action) {
	for _, fs := range r.features {
		want := fs.isActive(state)
		if want == fs.active {
			continue
		}
		fs.active = want
		if want {
			r.logger.Debug("feature activated", "feature", fs.def.Name)
			if fs.def.OnActivate != nil {
				r.emitAll(fs.def.Name, cause, fs.def.OnActivate(state))
			}
		} else {
			r.logger.Debug("feature deactivated", "feature", fs.def.Name)
			for _, in := range fs.members {
				in.reset()
			}
			if fs.def.OnDeactivate != nil {
				r.emitAll(fs.def.Name, cause, fs.def.OnDeactivate(state))
			}
		}
		if r.hooks.OnFeature != nil {
			r.hooks.OnFeature(ctx, &domain.FeatureEvent{Feature: fs.def.Name, Active: want})
		}
	}
}

// Info describes a registered handler.
type Info struct {
	Name     string   `json:"name"`
	Feature  string   `json:"feature,omitempty"`
	Types    []string `json:"types,omitempty"`
	Strategy string   `json:"strategy"`
	Bracket  string   `json:"bracket,omitempty"`
	Active   bool     `json:"active"`
	Halted   bool     `json:"halted"`
	InFlight int      `json:"inFlight"`
}

// Handlers describes every registered handler in registration order.
func (r *Root) Handlers() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.order))
	for _, in := range r.order {
		info := Info{
			Name:     in.handler.Name,
			Feature:  in.feature,
			Types:    slices.Clone(in.handler.Types),
			Strategy: in.strategy.String(),
			Active:   in.feature == "" || r.byFeat[in.feature].active,
			Halted:   in.halted.Load(),
			InFlight: in.inFlight(),
		}
		if in.handler.Bracket != nil {
			info.Bracket = in.handler.Bracket.Name
		}
		out = append(out, info)
	}
	return out
}

// InFlight counts live runs plus work waiting in debounce timers and queues.
func (r *Root) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, in := range r.order {
		n += in.inFlight()
	}
	return n
}

// Close cancels all in-flight work and waits for run goroutines until ctx is done.
func (r *Root) Close(ctx context.Context) error {
	r.life.Lock()
	r.closed.Store(true)
	r.life.Unlock()

	r.mu.Lock()
	for _, in := range r.order {
		in.stop()
	}
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track reserves a run slot unless the root is closed.
// The caller must call wg.Done when the run goroutine exits.
func (r *Root) track() bool {
	r.life.RLock()
	defer r.life.RUnlock()
	if r.closed.Load() {
		return false
	}
	r.wg.Add(1)
	return true
}

func (r *Root) accessor() domain.StateAccessor {
	if w := r.wiring.Load(); w.state != nil {
		return w.state
	}
	return domain.Static(domain.EmptyState())
}

func (r *Root) emit(act domain.Action) error {
	w := r.wiring.Load()
	if w.sink == nil {
		r.logger.Debug("no sink attached, dropping action", "action", act.Type)
		return nil
	}
	return w.sink.Dispatch(act)
}

func (r *Root) emitAll(origin string, cause domain.Action, acts []domain.Action) {
	for _, act := range acts {
		if err := r.emit(act.CausedBy(origin, cause)); err != nil {
			r.logger.Warn("dropping feature action", "feature", origin, "action", act.Type, "err", err)
		}
	}
}

func (r *Root) expect(m Matcher) *Expectation {
	r.tapMu.Lock()
	defer r.tapMu.Unlock()
	r.nextTap++
	e := &Expectation{root: r, id: r.nextTap, match: m, ch: make(chan domain.Action, 1)}
	r.taps[e.id] = e
	return e
}

func (r *Root) untap(id uint64) {
	r.tapMu.Lock()
	defer r.tapMu.Unlock()
	delete(r.taps, id)
}

// deliver resolves expectations before handlers see the action.
func (r *Root) deliver(act domain.Action) {
	r.tapMu.Lock()
	defer r.tapMu.Unlock()
	for id, e := range r.taps {
		if e.match(act) {
			e.ch <- act
			delete(r.taps, id)
		}
	}
}
