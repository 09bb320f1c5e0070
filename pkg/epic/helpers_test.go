package epic_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/stretchr/testify/require"
)

// recorder is a sink collecting emitted actions.
type recorder struct {
	mu   sync.Mutex
	acts []domain.Action
}

func (r *recorder) Dispatch(acts ...domain.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acts = append(r.acts, acts...)
	return nil
}

func (r *recorder) actions() []domain.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Action(nil), r.acts...)
}

func (r *recorder) types() []string {
	var out []string
	for _, a := range r.actions() {
		out = append(out, a.Type)
	}
	return out
}

func (r *recorder) payloads(actionType string) []any {
	var out []any
	for _, a := range r.actions() {
		if a.Type == actionType {
			out = append(out, a.Payload)
		}
	}
	return out
}

// mutableState is a state accessor tests can update.
type mutableState struct {
	mu    sync.Mutex
	state domain.State
}

func (m *mutableState) Get() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mutableState) set(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.With(key, v)
}

type job struct {
	Key string
	N   int
}

func newRoot(t *testing.T, state domain.StateAccessor, sources ...epic.Source) (*epic.Root, *recorder) {
	t.Helper()
	rec := &recorder{}
	if state == nil {
		state = domain.Static(domain.EmptyState())
	}
	root := epic.NewRoot()
	root.Attach(state, rec)
	require.NoError(t, root.Register(sources...))
	t.Cleanup(func() { _ = root.Close(context.Background()) })
	return root, rec
}

func offer(root *epic.Root, acts ...domain.Action) {
	for _, a := range acts {
		root.Offer(context.Background(), a)
	}
}
