package registry_test

import (
	"errors"
	"testing"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func handler(name string) registry.Factory {
	return func() (epic.Source, error) {
		return epic.Handler{Name: name, Body: func(*epic.Scope) error { return nil }}, nil
	}
}

func TestRegistry_Build(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("b", handler("b.one"))
	r.Register("a", handler("a.one"))

	assert.Equal(t, []string{"a", "b"}, r.Names())

	all, err := r.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.one", "b.one"}, all.Names())

	only, err := r.Build("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.one"}, only.Names())

	_, err = r.Build("ghost")
	assert.ErrorContains(t, err, "feature not found: ghost")
}

func TestRegistry_FactoryError(t *testing.T) {
	r := registry.NewRegistry()
	boom := errors.New("missing provider")
	r.Register("broken", func() (epic.Source, error) { return nil, boom })

	_, err := r.Build("broken")
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Decode(t *testing.T) {
	r := registry.NewRegistry()
	registry.RegisterPayload[move](r, "MOVE")
	assert.Equal(t, []string{"MOVE"}, r.Types())

	act, err := r.Decode(domain.NewAction("MOVE", map[string]any{"x": 1, "y": "2"}))
	require.NoError(t, err)
	assert.Equal(t, move{X: 1, Y: 2}, act.Payload)

	raw := domain.NewAction("OTHER", map[string]any{"x": 1})
	act, err = r.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, act)

	_, err = r.Decode(domain.NewAction("MOVE", "not a map"))
	assert.Error(t, err)
}
