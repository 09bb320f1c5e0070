package epic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/ripple/pkg/domain"
)

// Body is the work a handler performs for one triggering action.
// It may emit any number of actions through the scope. Returning an error
// reports a failure; panicking halts the handler.
type Body func(s *Scope) error

// KeyFunc derives the correlation key that partitions a handler's runs.
type KeyFunc func(act domain.Action) string

// Matcher selects actions.
type Matcher func(act domain.Action) bool

// OfType matches actions of the given types.
func OfType(types ...string) Matcher {
	return func(act domain.Action) bool {
		return act.Is(types...)
	}
}

// And matches when m and every other matcher match.
func (m Matcher) And(others ...Matcher) Matcher {
	return func(act domain.Action) bool {
		if !m(act) {
			return false
		}
		for _, o := range others {
			if !o(act) {
				return false
			}
		}
		return true
	}
}

// Handler is the declarative descriptor of an epic.
type Handler struct {
	// Name identifies the handler inside a Root. It must be unique and is the identity kept by Replace.
	Name string

	// Types lists the action types that trigger the handler. Empty means every action.
	Types []string

	// Filter optionally narrows matching actions further.
	Filter func(act domain.Action) bool

	// Key partitions runs for LatestWins, Serialized and Debounced. Nil means a single partition.
	Key KeyFunc

	// Strategy governs overlapping triggers. Defaults to Concurrent.
	Strategy Strategy

	// Bracket, when set, surrounds every run with start/end markers.
	Bracket *Bracket

	Body Body
}

// Set implements Source.
func (h Handler) Set() Set {
	return Set{Handlers: []Handler{h}}
}

func (h Handler) matches(act domain.Action) bool {
	if len(h.Types) > 0 && !slices.Contains(h.Types, act.Type) {
		return false
	}
	if h.Filter != nil && !h.Filter(act) {
		return false
	}
	return true
}

func (h Handler) key(act domain.Action) string {
	if h.Key == nil {
		return ""
	}
	return h.Key(act)
}

func (h Handler) strategy() Strategy {
	if h.Strategy == nil {
		return Concurrent()
	}
	return h.Strategy
}

func (h Handler) validate() error {
	if h.Name == "" {
		return fmt.Errorf("%w: missing name", domain.ErrInvalidHandler)
	}
	if h.Body == nil {
		return fmt.Errorf("%w: %s has no body", domain.ErrInvalidHandler, h.Name)
	}
	return nil
}

// KeyField builds a KeyFunc reading a payload field. Struct fields are matched by name
// or mapstructure tag, map keys exactly, both falling back to a case-insensitive match.
func KeyField(name string) KeyFunc {
	return func(act domain.Action) string {
		var fields map[string]any
		if err := domain.Decode(act.Payload, &fields); err != nil || fields == nil {
			return ""
		}
		if v, ok := fields[name]; ok {
			return fmt.Sprint(v)
		}
		for k, v := range fields {
			if strings.EqualFold(k, name) {
				return fmt.Sprint(v)
			}
		}
		return ""
	}
}

// Source is anything that contributes handlers to a Root.
type Source interface {
	Set() Set
}

// Set is a flat collection of handlers and features.
type Set struct {
	Handlers []Handler
	Features []Feature
}

// Set implements Source.
func (s Set) Set() Set {
	return s
}

// Merge flattens sources into one Set.
func Merge(sources ...Source) Set {
	var out Set
	for _, src := range sources {
		if src == nil {
			continue
		}
		s := src.Set()
		out.Handlers = append(out.Handlers, s.Handlers...)
		out.Features = append(out.Features, s.Features...)
	}
	return out
}

// Names returns every handler name in the set, feature handlers included.
func (s Set) Names() []string {
	var names []string
	for _, h := range s.Handlers {
		names = append(names, h.Name)
	}
	for _, f := range s.Features {
		for _, h := range f.Handlers {
			names = append(names, h.Name)
		}
	}
	return names
}

func (s Set) validate() error {
	seen := make(map[string]bool)
	check := func(h Handler) error {
		if err := h.validate(); err != nil {
			return err
		}
		if seen[h.Name] {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateHandler, h.Name)
		}
		seen[h.Name] = true
		return nil
	}
	for _, h := range s.Handlers {
		if err := check(h); err != nil {
			return err
		}
	}
	features := make(map[string]bool)
	for _, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("%w: feature without name", domain.ErrInvalidHandler)
		}
		if features[f.Name] {
			return fmt.Errorf("%w: feature %s", domain.ErrDuplicateHandler, f.Name)
		}
		features[f.Name] = true
		for _, h := range f.Handlers {
			if err := check(h); err != nil {
				return err
			}
		}
	}
	return nil
}
