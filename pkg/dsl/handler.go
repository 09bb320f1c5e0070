package dsl

import (
	"errors"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
)

// HandlerBuilder provides a fluent API for configuring a handler.
type HandlerBuilder struct {
	handler epic.Handler
	err     error
}

// On sets the triggering action types.
func (h *HandlerBuilder) On(types ...string) *HandlerBuilder {
	h.handler.Types = append(h.handler.Types, types...)
	return h
}

// Where narrows matching actions.
func (h *HandlerBuilder) Where(filter func(domain.Action) bool) *HandlerBuilder {
	h.handler.Filter = filter
	return h
}

// KeyBy partitions runs by a payload field.
func (h *HandlerBuilder) KeyBy(field string) *HandlerBuilder {
	h.handler.Key = epic.KeyField(field)
	return h
}

// Key partitions runs with a custom extractor.
func (h *HandlerBuilder) Key(fn epic.KeyFunc) *HandlerBuilder {
	h.handler.Key = fn
	return h
}

// Strategy sets the strategy explicitly, replacing anything configured before.
func (h *HandlerBuilder) Strategy(s epic.Strategy) *HandlerBuilder {
	h.handler.Strategy = s
	return h
}

// Concurrent lets every match run independently.
func (h *HandlerBuilder) Concurrent() *HandlerBuilder {
	return h.Strategy(epic.Concurrent())
}

// LatestWins cancels the previous run of the same key.
func (h *HandlerBuilder) LatestWins() *HandlerBuilder {
	return h.Strategy(epic.LatestWins())
}

// Serialized queues matches per key.
func (h *HandlerBuilder) Serialized() *HandlerBuilder {
	return h.Strategy(epic.Serialized())
}

// Debounce wraps the current strategy (LatestWins if none) in a debounce window.
func (h *HandlerBuilder) Debounce(window time.Duration) *HandlerBuilder {
	if window <= 0 {
		h.err = errors.Join(h.err, errors.New("debounce window must be positive"))
	}
	return h.Strategy(epic.Debounced(window, h.current(epic.LatestWins())))
}

// Race wraps the current strategy so each run waits for a companion action or the deadline.
func (h *HandlerBuilder) Race(deadline time.Duration, companion epic.Matcher, race epic.Race) *HandlerBuilder {
	if deadline <= 0 {
		h.err = errors.Join(h.err, errors.New("race deadline must be positive"))
	}
	if companion == nil {
		h.err = errors.Join(h.err, errors.New("race needs a companion matcher"))
	}
	return h.Strategy(epic.RaceWithTimeout(deadline, companion, race, h.current(epic.Concurrent())))
}

// Retry wraps the current strategy with retries.
func (h *HandlerBuilder) Retry(maxAttempts int, baseDelay time.Duration) *HandlerBuilder {
	if maxAttempts < 1 {
		h.err = errors.Join(h.err, errors.New("retry needs at least one attempt"))
	}
	return h.Strategy(epic.RetryWithBackoff(maxAttempts, baseDelay, h.current(epic.Concurrent())))
}

// Bracket surrounds every run with default loading markers named name.
func (h *HandlerBuilder) Bracket(name string) *HandlerBuilder {
	h.handler.Bracket = &epic.Bracket{Name: name}
	return h
}

// BracketWith surrounds every run with custom markers.
func (h *HandlerBuilder) BracketWith(b epic.Bracket) *HandlerBuilder {
	h.handler.Bracket = &b
	return h
}

// Do sets the body.
func (h *HandlerBuilder) Do(body epic.Body) *HandlerBuilder {
	h.handler.Body = body
	return h
}

// Emit sets a body that maps the trigger to actions synchronously.
func (h *HandlerBuilder) Emit(fn func(act domain.Action, state domain.State) []domain.Action) *HandlerBuilder {
	return h.Do(func(s *epic.Scope) error {
		return s.Emit(fn(s.Action(), s.State())...)
	})
}

// Handler returns the descriptor built so far.
func (h *HandlerBuilder) Handler() epic.Handler {
	return h.handler
}

func (h *HandlerBuilder) current(fallback epic.Strategy) epic.Strategy {
	if h.handler.Strategy != nil {
		return h.handler.Strategy
	}
	return fallback
}
