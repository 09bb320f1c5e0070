package domain

import (
	"context"
	"time"
)

// RunEvent describes one execution of a handler body for one triggering action.
type RunEvent struct {
	Handler  string        `json:"handler"`
	Feature  string        `json:"feature,omitempty"`
	Key      string        `json:"key,omitempty"`
	Action   Action        `json:"action"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// DispatchEvent describes an action reaching the composition root.
type DispatchEvent struct {
	Action Action `json:"action"`
}

// FeatureEvent describes a feature activation transition.
type FeatureEvent struct {
	Feature string `json:"feature"`
	Active  bool   `json:"active"`
}

// LifecycleHooks defines callbacks for runtime observability.
// Every field is optional.
type LifecycleHooks struct {
	OnDispatch func(context.Context, *DispatchEvent)
	OnRunStart func(context.Context, *RunEvent)
	OnRunEnd   func(context.Context, *RunEvent)
	OnCancel   func(context.Context, *RunEvent)
	OnHalt     func(context.Context, *RunEvent)
	OnFeature  func(context.Context, *FeatureEvent)
}
