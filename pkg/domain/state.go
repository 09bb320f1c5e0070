package domain

import (
	"fmt"
	"maps"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// State is an immutable snapshot of the application state tree.
// Top-level keys are slices owned by reducers; values may be maps or typed structs.
type State struct {
	tree map[string]any
}

// NewState creates a snapshot from a tree. The top-level map is copied.
func NewState(tree map[string]any) State {
	return State{tree: maps.Clone(tree)}
}

// EmptyState returns a snapshot with no slices.
func EmptyState() State {
	return State{}
}

// Keys returns the top-level slice names.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.tree))
	for k := range s.tree {
		keys = append(keys, k)
	}
	return keys
}

// Slice returns the raw value stored under a top-level key.
func (s State) Slice(key string) (any, bool) {
	v, ok := s.tree[key]
	return v, ok
}

// With returns a new snapshot with key set to value. The receiver is unchanged.
func (s State) With(key string, value any) State {
	next := make(map[string]any, len(s.tree)+1)
	maps.Copy(next, s.tree)
	next[key] = value
	return State{tree: next}
}

// Tree returns a shallow copy of the top-level tree.
func (s State) Tree() map[string]any {
	return maps.Clone(s.tree)
}

// Get resolves a dotted path ("geoprocessing.enabled"). Structs along the path are
// traversed through their mapstructure tags.
func (s State) Get(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = s.tree
	for _, segment := range strings.Split(path, ".") {
		node, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}
	var out map[string]any
	if err := mapstructure.Decode(v, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// Select resolves path and decodes the value into T.
// Values already of type T are returned as is; maps are decoded with mapstructure.
func Select[T any](s State, path string) (T, error) {
	var zero T
	raw, ok := s.Get(path)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrStateNotFound, path)
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	var out T
	if err := Decode(raw, &out); err != nil {
		return zero, fmt.Errorf("select %s: %w", path, err)
	}
	return out, nil
}

// SelectOr is Select with a fallback for missing or undecodable values.
func SelectOr[T any](s State, path string, fallback T) T {
	v, err := Select[T](s, path)
	if err != nil {
		return fallback
	}
	return v
}

// Decode converts loosely typed data (maps from JSON/YAML) into a typed value.
func Decode(input any, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// StateAccessor is the read-only handle handlers use to observe state.
type StateAccessor interface {
	Get() State
}

// StateFunc adapts a function to StateAccessor.
type StateFunc func() State

// Get implements StateAccessor.
func (f StateFunc) Get() State {
	return f()
}

// Static returns an accessor that always yields s.
func Static(s State) StateAccessor {
	return StateFunc(func() State { return s })
}
