package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on a client.
type StateDiff struct {
	// Changed contains added or modified top-level slices.
	Changed map[string]any `json:"changed,omitempty"`

	// Removed lists slices that disappeared.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between two snapshots, slice by slice.
// It returns nil when nothing changed.
func Diff(oldState, newState State) *StateDiff {
	diff := &StateDiff{}

	for k, newVal := range newState.tree {
		oldVal, exists := oldState.tree[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			if diff.Changed == nil {
				diff.Changed = make(map[string]any)
			}
			diff.Changed[k] = newVal
		}
	}

	for k := range oldState.tree {
		if _, exists := newState.tree[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}
