package epic

import "github.com/aretw0/ripple/pkg/domain"

// Feature groups handlers under an activation condition.
//
// Active is evaluated on the current snapshot before every action is offered. While it is false the
// feature's handlers receive nothing. On the active to inactive transition every run is cancelled,
// pending timers and queues are dropped and OnDeactivate's cleanup actions are emitted before any handler
// sees the triggering action. Re-activation starts the handlers cold and emits OnActivate's actions.
type Feature struct {
	Name string

	// Active reports whether the feature is on. Nil means always active.
	Active func(state domain.State) bool

	Handlers []Handler

	OnActivate   func(state domain.State) []domain.Action
	OnDeactivate func(state domain.State) []domain.Action
}

// Set implements Source.
func (f Feature) Set() Set {
	return Set{Features: []Feature{f}}
}

// WhenTrue builds an activation condition reading a boolean at path. Missing values are false.
func WhenTrue(path string) func(domain.State) bool {
	return func(state domain.State) bool {
		return domain.SelectOr(state, path, false)
	}
}

type featureState struct {
	def     Feature
	active  bool
	members []*instance
}

func (f *featureState) isActive(state domain.State) bool {
	if f.def.Active == nil {
		return true
	}
	return f.def.Active(state)
}
