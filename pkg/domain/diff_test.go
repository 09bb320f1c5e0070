package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      State
		new      State
		wantDiff *StateDiff
	}{
		{
			name:     "Initial Load",
			old:      EmptyState(),
			new:      NewState(map[string]any{"a": 1}),
			wantDiff: &StateDiff{Changed: map[string]any{"a": 1}},
		},
		{
			name:     "No Changes",
			old:      NewState(map[string]any{"a": map[string]any{"x": 1}}),
			new:      NewState(map[string]any{"a": map[string]any{"x": 1}}),
			wantDiff: nil,
		},
		{
			name:     "Modified Slice",
			old:      NewState(map[string]any{"a": 1, "b": 2}),
			new:      NewState(map[string]any{"a": 1, "b": 3}),
			wantDiff: &StateDiff{Changed: map[string]any{"b": 3}},
		},
		{
			name:     "Removed Slice",
			old:      NewState(map[string]any{"a": 1, "b": 2}),
			new:      NewState(map[string]any{"a": 1}),
			wantDiff: &StateDiff{Removed: []string{"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			assert.Equal(t, tt.wantDiff, got)
		})
	}
}

func TestDiff_JSONOmitsEmptyFields(t *testing.T) {
	d := Diff(EmptyState(), NewState(map[string]any{"layers": []string{"a"}}))
	data, err := json.Marshal(d)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"changed":{"layers":["a"]}}`, string(data))
}
