// Package store hosts the plain reducers that apply actions to the state tree.
// Reducers are pure: they receive the current value of their slice and return the next one.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/domain"
)

// Reducer computes the next value of a state slice.
// Returning the same value leaves the slice untouched.
type Reducer func(slice any, act domain.Action) any

// ChangeFunc is notified after an action changed the state.
type ChangeFunc func(ctx context.Context, act domain.Action, diff *domain.StateDiff)

// Store holds the current snapshot and implements domain.StateAccessor.
type Store struct {
	mu       sync.RWMutex
	state    domain.State
	reducers map[string]Reducer
	order    []string
	watchers []ChangeFunc
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithReducer registers the reducer responsible for the slice at key.
func WithReducer(key string, r Reducer) Option {
	return func(s *Store) {
		s.register(key, r)
	}
}

// WithWatcher registers a change callback.
func WithWatcher(fn ChangeFunc) Option {
	return func(s *Store) {
		s.watchers = append(s.watchers, fn)
	}
}

// WithLogger configures the logger used to report reducer panics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store seeded with initial.
func New(initial domain.State, opts ...Option) *Store {
	s := &Store{
		state:    initial,
		reducers: make(map[string]Reducer),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces the reducer of a slice.
func (s *Store) Register(key string, r Reducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.register(key, r)
}

func (s *Store) register(key string, r Reducer) {
	if _, ok := s.reducers[key]; !ok {
		s.order = append(s.order, key)
	}
	s.reducers[key] = r
}

// Watch registers a change callback.
func (s *Store) Watch(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Get returns the current snapshot.
func (s *Store) Get() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset replaces the whole snapshot.
func (s *Store) Reset(state domain.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Reduce applies act to every registered slice. Its signature matches bus.Listener
// so the store can be installed as the first stage of a bus.
// A panicking reducer leaves its slice unchanged; the other slices still apply.
func (s *Store) Reduce(ctx context.Context, act domain.Action) {
	prev, next, watchers := s.apply(act)
	if len(watchers) == 0 {
		return
	}
	diff := domain.Diff(prev, next)
	if diff == nil {
		return
	}
	for _, w := range watchers {
		w(ctx, act, diff)
	}
}

func (s *Store) apply(act domain.Action) (prev, next domain.State, watchers []ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	next = prev
	for _, key := range s.order {
		cur, _ := next.Slice(key)
		if updated, ok := s.reduce(key, cur, act); ok && !sameSlice(cur, updated) {
			next = next.With(key, updated)
		}
	}
	s.state = next
	return prev, next, append([]ChangeFunc(nil), s.watchers...)
}

func (s *Store) reduce(key string, cur any, act domain.Action) (updated any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reducer panicked, slice kept",
				"slice", key,
				"action", act.Type,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			updated, ok = cur, false
		}
	}()
	return s.reducers[key](cur, act), true
}

// sameSlice avoids rebuilding the tree when a reducer returns its input.
// Non-comparable values (maps, slices) are always treated as changed; Diff filters them later.
func sameSlice(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
