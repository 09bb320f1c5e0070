package epic_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	actionPing    = "test/PING"
	actionPong    = "test/PONG"
	actionCleanup = "test/CLEANUP"
	actionHello   = "test/HELLO"
)

func echo(name string) epic.Handler {
	return epic.Handler{
		Name:  name,
		Types: []string{actionPing},
		Body: func(s *epic.Scope) error {
			return s.Emit(domain.NewAction(actionPong, name))
		},
	}
}

func TestRoot_UnionOfHandlers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, echo("a"), echo("b"))

		offer(root, domain.NewAction(actionPing, nil), domain.NewAction("test/OTHER", nil))
		synctest.Wait()

		assert.ElementsMatch(t, []any{"a", "b"}, rec.payloads(actionPong))
	})
}

func TestRoot_EmittedActionsCarryCausality(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, echo("a"))

		trigger := domain.NewAction(actionPing, nil)
		offer(root, trigger)
		synctest.Wait()

		acts := rec.actions()
		require.Len(t, acts, 1)
		assert.Equal(t, "a", acts[0].Meta.Origin)
		assert.Equal(t, trigger.Meta.ID, acts[0].Meta.Cause)
	})
}

func TestRoot_RegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	root := epic.NewRoot()
	assert.ErrorIs(t, root.Register(echo("a"), echo("a")), domain.ErrDuplicateHandler)
	assert.ErrorIs(t, root.Register(epic.Handler{Name: "nobody"}), domain.ErrInvalidHandler)
	assert.ErrorIs(t, root.Register(epic.Handler{Body: func(*epic.Scope) error { return nil }}), domain.ErrInvalidHandler)

	require.NoError(t, root.Register(echo("a")))
	assert.ErrorIs(t, root.Register(echo("a")), domain.ErrDuplicateHandler)
	require.NoError(t, root.Close(context.Background()))
}

func TestRoot_ReturnedErrorIsReportedAndHandlerContinues(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		calls := 0
		h := epic.Handler{
			Name:  "flaky",
			Types: []string{actionPing},
			Body: func(s *epic.Scope) error {
				calls++
				if calls == 1 {
					return errors.New("service unavailable")
				}
				return s.Emit(domain.NewAction(actionPong, nil))
			},
			Strategy: epic.Serialized(),
		}
		root, rec := newRoot(t, nil, h)

		offer(root, domain.NewAction(actionPing, nil), domain.NewAction(actionPing, nil))
		synctest.Wait()

		assert.Equal(t, []string{domain.ActionHandlerError, actionPong}, rec.types())
		failure := rec.payloads(domain.ActionHandlerError)[0].(domain.Failure)
		assert.Equal(t, "flaky", failure.Name)
		assert.Equal(t, "service unavailable", failure.Message)
	})
}

func TestRoot_PanicHaltsOnlyTheOffendingHandler(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		broken := epic.Handler{
			Name:  "broken",
			Types: []string{actionPing},
			Body:  func(s *epic.Scope) error { panic("nil map") },
		}
		root, rec := newRoot(t, nil, broken, echo("healthy"))

		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()
		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()

		assert.Len(t, rec.payloads(domain.ActionHandlerHalted), 1, "a halted handler stops reacting")
		assert.Equal(t, []any{"healthy", "healthy"}, rec.payloads(actionPong))

		for _, info := range root.Handlers() {
			assert.Equal(t, info.Name == "broken", info.Halted)
		}
	})
}

func TestRoot_HooksObserveRuns(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var started, ended, cancelled, halted atomic.Int32
		hooks := domain.LifecycleHooks{
			OnRunStart: func(context.Context, *domain.RunEvent) { started.Add(1) },
			OnRunEnd:   func(context.Context, *domain.RunEvent) { ended.Add(1) },
			OnCancel:   func(context.Context, *domain.RunEvent) { cancelled.Add(1) },
			OnHalt:     func(context.Context, *domain.RunEvent) { halted.Add(1) },
		}
		rec := &recorder{}
		root := epic.NewRoot(epic.WithHooks(hooks), epic.WithSink(rec))
		defer root.Close(context.Background())

		require.NoError(t, root.Register(
			slowJob("slow", epic.LatestWins(), 10*time.Millisecond),
			epic.Handler{Name: "boom", Types: []string{actionPing}, Body: func(*epic.Scope) error { panic("x") }},
		))

		offer(root, domain.NewAction(actionJob, job{}), domain.NewAction(actionJob, job{}))
		offer(root, domain.NewAction(actionPing, nil))
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, int32(3), started.Load())
		assert.Equal(t, int32(1), ended.Load())
		assert.Equal(t, int32(1), cancelled.Load())
		assert.Equal(t, int32(1), halted.Load())
	})
}

func TestBracket_SuccessFailureAndPanic(t *testing.T) {
	tests := []struct {
		name string
		body epic.Body
		want []string
	}{
		{
			name: "success",
			body: func(s *epic.Scope) error { return s.Emit(domain.NewAction(actionPong, nil)) },
			want: []string{domain.ActionLoading, actionPong, domain.ActionLoading},
		},
		{
			name: "failure",
			body: func(s *epic.Scope) error { return errors.New("500") },
			want: []string{domain.ActionLoading, domain.ActionError, domain.ActionLoading},
		},
		{
			name: "panic",
			body: func(s *epic.Scope) error { panic("defect") },
			want: []string{domain.ActionLoading, domain.ActionError, domain.ActionLoading, domain.ActionHandlerHalted},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				root, rec := newRoot(t, nil, epic.Handler{
					Name:    "io",
					Types:   []string{actionPing},
					Bracket: &epic.Bracket{Name: "fetch"},
					Body:    tt.body,
				})

				offer(root, domain.NewAction(actionPing, nil))
				synctest.Wait()

				assert.Equal(t, tt.want, rec.types())
				markers := rec.payloads(domain.ActionLoading)
				assert.Equal(t, []any{
					domain.Loading{Name: "fetch", Status: domain.StatusStart},
					domain.Loading{Name: "fetch", Status: domain.StatusEnd},
				}, markers)
			})
		})
	}
}

func TestBracket_CancelledRunEndsOnceThenGoesQuiet(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := slowJob("search", epic.LatestWins(), 10*time.Millisecond)
		h.Bracket = &epic.Bracket{Name: "search"}
		root, rec := newRoot(t, nil, h)

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		time.Sleep(5 * time.Millisecond)
		offer(root, domain.NewAction(actionJob, job{N: 2}))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{
			domain.ActionLoading, // first start
			domain.ActionLoading, // first end, at cancellation
			domain.ActionLoading, // second start
			actionDone,
			domain.ActionLoading, // second end
		}, rec.types())
		assert.Equal(t, []any{
			domain.Loading{Name: "search", Status: domain.StatusStart},
			domain.Loading{Name: "search", Status: domain.StatusEnd},
			domain.Loading{Name: "search", Status: domain.StatusStart},
			domain.Loading{Name: "search", Status: domain.StatusEnd},
		}, rec.payloads(domain.ActionLoading))
		assert.Equal(t, []any{job{N: 2}}, rec.payloads(actionDone))
	})
}

func TestBracket_NestedStepsEndInnermostFirstOnCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var inner error
		root, rec := newRoot(t, nil, epic.Handler{
			Name:     "nested",
			Types:    []string{actionJob},
			Strategy: epic.LatestWins(),
			Bracket:  &epic.Bracket{Name: "outer"},
			Body: func(s *epic.Scope) error {
				inner = s.Bracket(epic.Bracket{Name: "inner"}, func() error {
					return s.Sleep(time.Hour)
				})
				return s.Emit(domain.NewAction(actionDone, nil))
			},
		})

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		synctest.Wait()
		require.NoError(t, root.Close(context.Background()))

		assert.ErrorIs(t, inner, domain.ErrCancelled)
		assert.Equal(t, []any{
			domain.Loading{Name: "outer", Status: domain.StatusStart},
			domain.Loading{Name: "inner", Status: domain.StatusStart},
			domain.Loading{Name: "inner", Status: domain.StatusEnd},
			domain.Loading{Name: "outer", Status: domain.StatusEnd},
		}, rec.payloads(domain.ActionLoading))
		assert.Empty(t, rec.payloads(actionDone))
		assert.Empty(t, rec.payloads(domain.ActionError))
	})
}

func TestScope_SettleEndsEarlyOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, epic.Handler{
			Name:    "settle",
			Types:   []string{actionPing},
			Bracket: &epic.Bracket{Name: "op"},
			Body: func(s *epic.Scope) error {
				s.Settle()
				s.Settle()
				return s.Emit(domain.NewAction(actionPong, nil))
			},
		})

		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()

		assert.Equal(t, []string{domain.ActionLoading, domain.ActionLoading, actionPong}, rec.types())
	})
}

func TestScope_NestedBracketStep(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		custom := epic.Bracket{
			Name:  "style",
			Start: func(name string) domain.Action { return domain.NewAction("style/LOADING", name) },
			End:   func(name string) domain.Action { return domain.NewAction("style/LOADED", name) },
			Error: func(name string, err error) domain.Action { return domain.NewAction("style/ERROR", err.Error()) },
		}
		root, rec := newRoot(t, nil, epic.Handler{
			Name:  "steps",
			Types: []string{actionPing},
			Body: func(s *epic.Scope) error {
				err := s.Bracket(custom, func() error { return errors.New("bad css") })
				assert.EqualError(t, err, "bad css")
				return s.Emit(domain.NewAction(actionPong, nil))
			},
		})

		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()

		assert.Equal(t, []string{"style/LOADING", "style/ERROR", "style/LOADED", actionPong}, rec.types())
	})
}

func TestScope_AwaitTimesOut(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var got error
		root, _ := newRoot(t, nil, epic.Handler{
			Name:  "await",
			Types: []string{actionPing},
			Body: func(s *epic.Scope) error {
				_, got = s.Await(epic.OfType(actionPong), 20*time.Millisecond)
				return nil
			},
		})

		offer(root, domain.NewAction(actionPing, nil))
		time.Sleep(30 * time.Millisecond)
		synctest.Wait()

		assert.ErrorIs(t, got, domain.ErrTimeout)
	})
}

func TestFeature_TeardownCancelsAndCleansUp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		state := &mutableState{state: domain.NewState(map[string]any{"tool": map[string]any{"enabled": true}})}
		feature := epic.Feature{
			Name:     "tool",
			Active:   epic.WhenTrue("tool.enabled"),
			Handlers: []epic.Handler{slowJob("tool/job", epic.LatestWins(), 50*time.Millisecond)},
			OnActivate: func(domain.State) []domain.Action {
				return []domain.Action{domain.NewAction(actionHello, nil)}
			},
			OnDeactivate: func(domain.State) []domain.Action {
				return []domain.Action{domain.NewAction(actionCleanup, "remove overlays")}
			},
		}
		root, rec := newRoot(t, state, feature)

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		time.Sleep(10 * time.Millisecond)

		state.set("tool", map[string]any{"enabled": false})
		offer(root, domain.NewAction("tool/TOGGLE", nil))
		offer(root, domain.NewAction(actionJob, job{N: 2}))
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{actionHello, actionCleanup}, rec.types(),
			"no output from cancelled work and nothing reaches an inactive feature")
		assert.Zero(t, root.InFlight())

		state.set("tool", map[string]any{"enabled": true})
		offer(root, domain.NewAction(actionJob, job{N: 3}))
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{actionHello, actionCleanup, actionHello, actionDone}, rec.types())
		assert.Equal(t, []any{job{N: 3}}, rec.payloads(actionDone))
	})
}

func TestFeature_TeardownEndsOpenBrackets(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		state := &mutableState{state: domain.NewState(map[string]any{"on": true})}
		h := slowJob("tool/job", epic.Concurrent(), time.Second)
		h.Bracket = &epic.Bracket{Name: "job"}
		feature := epic.Feature{
			Name:     "tool",
			Active:   epic.WhenTrue("on"),
			Handlers: []epic.Handler{h},
			OnDeactivate: func(domain.State) []domain.Action {
				return []domain.Action{domain.NewAction(actionCleanup, nil)}
			},
		}
		root, rec := newRoot(t, state, feature)

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		time.Sleep(10 * time.Millisecond)
		state.set("on", false)
		offer(root, domain.NewAction("tool/TOGGLE", nil))
		time.Sleep(2 * time.Second)
		synctest.Wait()

		assert.Equal(t, []string{domain.ActionLoading, domain.ActionLoading, actionCleanup}, rec.types())
		assert.Equal(t, []any{
			domain.Loading{Name: "job", Status: domain.StatusStart},
			domain.Loading{Name: "job", Status: domain.StatusEnd},
		}, rec.payloads(domain.ActionLoading))
	})
}

func TestFeature_ReactivationClearsHalt(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		state := &mutableState{state: domain.NewState(map[string]any{"on": true})}
		calls := 0
		feature := epic.Feature{
			Name:   "f",
			Active: epic.WhenTrue("on"),
			Handlers: []epic.Handler{{
				Name:  "f/once",
				Types: []string{actionPing},
				Body: func(s *epic.Scope) error {
					calls++
					if calls == 1 {
						panic("first call")
					}
					return s.Emit(domain.NewAction(actionPong, nil))
				},
			}},
		}
		root, rec := newRoot(t, state, feature)

		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()
		state.set("on", false)
		offer(root, domain.NewAction("toggle", nil))
		state.set("on", true)
		offer(root, domain.NewAction(actionPing, nil))
		synctest.Wait()

		assert.Equal(t, []string{domain.ActionHandlerHalted, actionPong}, rec.types())
	})
}

func TestRoot_ReplaceKeepsPersistingInstances(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		kept := slowJob("kept", epic.Concurrent(), 20*time.Millisecond)
		dropped := slowJob("dropped", epic.Concurrent(), 20*time.Millisecond)
		root, rec := newRoot(t, nil, kept, dropped)

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		time.Sleep(5 * time.Millisecond)

		trace := epic.Handler{
			Name: "trace",
			Body: func(s *epic.Scope) error { return nil },
		}
		require.NoError(t, root.Replace(kept, trace))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		acts := rec.actions()
		require.Len(t, acts, 1, "the in-flight run of the kept handler survives, the dropped one is cancelled")
		assert.Equal(t, "kept", acts[0].Meta.Origin)

		var names []string
		for _, info := range root.Handlers() {
			names = append(names, info.Name)
		}
		assert.Equal(t, []string{"kept", "trace"}, names)
	})
}

func TestRoot_CloseCancelsInFlight(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &recorder{}
		root := epic.NewRoot(epic.WithSink(rec))
		require.NoError(t, root.Register(slowJob("slow", epic.Concurrent(), time.Hour)))

		offer(root, domain.NewAction(actionJob, job{}))
		require.NoError(t, root.Close(context.Background()))

		offer(root, domain.NewAction(actionJob, job{}))
		synctest.Wait()
		assert.Empty(t, rec.actions())
		assert.Zero(t, root.InFlight())
	})
}

func TestKeyField(t *testing.T) {
	type payload struct {
		LayerID string
		Source  string `mapstructure:"source"`
	}
	tests := []struct {
		name    string
		payload any
		field   string
		want    string
	}{
		{"struct field", payload{LayerID: "l1"}, "LayerID", "l1"},
		{"mapstructure tag", payload{Source: "intersection"}, "source", "intersection"},
		{"case insensitive", payload{Source: "source"}, "Source", "source"},
		{"map", map[string]any{"index": 2}, "index", "2"},
		{"missing", map[string]any{}, "owner", ""},
		{"scalar", "text", "owner", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, epic.KeyField(tt.field)(domain.NewAction("x", tt.payload)))
		})
	}
}
