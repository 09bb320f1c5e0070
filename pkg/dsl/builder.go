package dsl

import (
	"fmt"
	"slices"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
)

// Builder collects handler and feature declarations.
type Builder struct {
	handlers []*HandlerBuilder
	features []*FeatureBuilder
	byName   map[string]*HandlerBuilder
	byFeat   map[string]*FeatureBuilder
}

// New creates a new builder.
func New() *Builder {
	return &Builder{
		byName: make(map[string]*HandlerBuilder),
		byFeat: make(map[string]*FeatureBuilder),
	}
}

// Add declares a standalone handler.
// If the handler already exists, it returns the existing builder.
func (b *Builder) Add(name string) *HandlerBuilder {
	if hb, ok := b.byName[name]; ok {
		return hb
	}
	hb := &HandlerBuilder{handler: epic.Handler{Name: name}}
	b.byName[name] = hb
	b.handlers = append(b.handlers, hb)
	return hb
}

// Feature declares a feature. If it already exists, it returns the existing builder.
func (b *Builder) Feature(name string) *FeatureBuilder {
	if fb, ok := b.byFeat[name]; ok {
		return fb
	}
	fb := &FeatureBuilder{builder: b, feature: epic.Feature{Name: name}, byName: make(map[string]*HandlerBuilder)}
	b.byFeat[name] = fb
	b.features = append(b.features, fb)
	return fb
}

// Build validates the declarations and returns them as a Set, in declaration order.
func (b *Builder) Build() (epic.Set, error) {
	var set epic.Set
	for _, hb := range b.handlers {
		if hb.err != nil {
			return epic.Set{}, fmt.Errorf("handler %s: %w", hb.handler.Name, hb.err)
		}
		set.Handlers = append(set.Handlers, hb.handler)
	}
	for _, fb := range b.features {
		f := fb.feature
		f.Handlers = nil
		for _, hb := range fb.handlers {
			if hb.err != nil {
				return epic.Set{}, fmt.Errorf("feature %s: handler %s: %w", f.Name, hb.handler.Name, hb.err)
			}
			f.Handlers = append(f.Handlers, hb.handler)
		}
		set.Features = append(set.Features, f)
	}
	for _, h := range slices.Concat(set.Handlers, featureHandlers(set)) {
		if h.Body == nil {
			return epic.Set{}, fmt.Errorf("%w: %s has no Do", domain.ErrInvalidHandler, h.Name)
		}
	}
	return set, nil
}

// MustBuild is Build for static declarations; it panics on error.
func (b *Builder) MustBuild() epic.Set {
	set, err := b.Build()
	if err != nil {
		panic(err)
	}
	return set
}

func featureHandlers(set epic.Set) []epic.Handler {
	var out []epic.Handler
	for _, f := range set.Features {
		out = append(out, f.Handlers...)
	}
	return out
}

// FeatureBuilder provides a fluent API for configuring a feature.
type FeatureBuilder struct {
	builder  *Builder
	feature  epic.Feature
	handlers []*HandlerBuilder
	byName   map[string]*HandlerBuilder
}

// When activates the feature while the boolean at path is true.
func (f *FeatureBuilder) When(path string) *FeatureBuilder {
	f.feature.Active = epic.WhenTrue(path)
	return f
}

// ActiveIf sets an arbitrary activation condition.
func (f *FeatureBuilder) ActiveIf(fn func(domain.State) bool) *FeatureBuilder {
	f.feature.Active = fn
	return f
}

// OnActivate sets the actions emitted when the feature turns on.
func (f *FeatureBuilder) OnActivate(fn func(domain.State) []domain.Action) *FeatureBuilder {
	f.feature.OnActivate = fn
	return f
}

// OnDeactivate sets the cleanup actions emitted when the feature turns off.
func (f *FeatureBuilder) OnDeactivate(fn func(domain.State) []domain.Action) *FeatureBuilder {
	f.feature.OnDeactivate = fn
	return f
}

// End returns to the parent builder.
func (f *FeatureBuilder) End() *Builder {
	return f.builder
}

// Add declares a handler owned by the feature.
func (f *FeatureBuilder) Add(name string) *HandlerBuilder {
	if hb, ok := f.byName[name]; ok {
		return hb
	}
	hb := &HandlerBuilder{handler: epic.Handler{Name: name}}
	f.byName[name] = hb
	f.handlers = append(f.handlers, hb)
	return hb
}
