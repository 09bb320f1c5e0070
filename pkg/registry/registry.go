// Package registry keeps named feature factories and the payload types of the actions
// they understand, so hosts can assemble a handler set by name and turn loosely typed
// actions (JSON, YAML) into the typed values handlers and reducers expect.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
)

// Factory builds the handlers of a feature.
type Factory func() (epic.Source, error)

// Registry manages the available features and action payloads.
type Registry struct {
	mu       sync.RWMutex
	features map[string]Factory
	payloads map[string]func(domain.Action) (any, error)
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		features: make(map[string]Factory),
		payloads: make(map[string]func(domain.Action) (any, error)),
	}
}

// Register adds a feature factory.
// If a feature with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features[name] = fn
}

// Names lists the registered features, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.features))
	for n := range r.features {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Build calls the factories of the named features and merges their handlers.
// No names means every registered feature.
func (r *Registry) Build(names ...string) (epic.Set, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	sources := make([]epic.Source, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		fn, ok := r.features[name]
		r.mu.RUnlock()
		if !ok {
			return epic.Set{}, fmt.Errorf("feature not found: %s", name)
		}
		src, err := fn()
		if err != nil {
			return epic.Set{}, fmt.Errorf("feature %s: %w", name, err)
		}
		sources = append(sources, src)
	}
	return epic.Merge(sources...), nil
}

// RegisterPayload declares T as the payload type of actionType.
func RegisterPayload[T any](r *Registry, actionType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads[actionType] = func(act domain.Action) (any, error) {
		return domain.PayloadOf[T](act)
	}
}

// Types lists the action types with a registered payload, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.payloads))
	for t := range r.payloads {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Decode converts the payload of act into its registered type.
// Actions of unregistered types, or without payload, are returned unchanged.
func (r *Registry) Decode(act domain.Action) (domain.Action, error) {
	r.mu.RLock()
	decode, ok := r.payloads[act.Type]
	r.mu.RUnlock()
	if !ok || act.Payload == nil {
		return act, nil
	}
	payload, err := decode(act)
	if err != nil {
		return act, err
	}
	act.Payload = payload
	return act, nil
}
