package epic_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	actionJob  = "test/JOB"
	actionDone = "test/DONE"
)

func slowJob(name string, strategy epic.Strategy, d time.Duration) epic.Handler {
	return epic.Handler{
		Name:     name,
		Types:    []string{actionJob},
		Key:      epic.KeyField("Key"),
		Strategy: strategy,
		Body: func(s *epic.Scope) error {
			if err := s.Sleep(d); err != nil {
				return err
			}
			return s.Emit(domain.NewAction(actionDone, s.Action().Payload))
		},
	}
}

func TestConcurrent_AllRunsComplete(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, slowJob("jobs", epic.Concurrent(), 10*time.Millisecond))

		offer(root,
			domain.NewAction(actionJob, job{Key: "a", N: 1}),
			domain.NewAction(actionJob, job{Key: "a", N: 2}),
		)
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()

		assert.ElementsMatch(t, []any{job{Key: "a", N: 1}, job{Key: "a", N: 2}}, rec.payloads(actionDone))
	})
}

func TestLatestWins_CancelsPerKey(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, slowJob("jobs", epic.LatestWins(), 10*time.Millisecond))

		offer(root,
			domain.NewAction(actionJob, job{Key: "a", N: 1}),
			domain.NewAction(actionJob, job{Key: "b", N: 2}),
		)
		time.Sleep(5 * time.Millisecond)
		offer(root, domain.NewAction(actionJob, job{Key: "a", N: 3}))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		assert.ElementsMatch(t, []any{job{Key: "b", N: 2}, job{Key: "a", N: 3}}, rec.payloads(actionDone),
			"the superseded run for key a must leave no trace")
		assert.Zero(t, root.InFlight())
	})
}

func TestSerialized_NeverOverlapsAndKeepsOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		running, maxRunning := 0, 0
		var order []int

		h := epic.Handler{
			Name:     "serial",
			Types:    []string{actionJob},
			Strategy: epic.Serialized(),
			Body: func(s *epic.Scope) error {
				mu.Lock()
				running++
				maxRunning = max(maxRunning, running)
				mu.Unlock()

				err := s.Sleep(10 * time.Millisecond)

				mu.Lock()
				running--
				order = append(order, s.Action().Payload.(job).N)
				mu.Unlock()
				return err
			},
		}
		root, _ := newRoot(t, nil, h)

		for i := 1; i <= 4; i++ {
			offer(root, domain.NewAction(actionJob, job{N: i}))
		}
		assert.Equal(t, 4, root.InFlight(), "one running, three queued")

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, maxRunning)
		assert.Equal(t, []int{1, 2, 3, 4}, order)
	})
}

func TestDebounced_BurstCollapsesToLast(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, slowJob("search", epic.Debounced(50*time.Millisecond), time.Millisecond))

		for i := 1; i <= 3; i++ {
			offer(root, domain.NewAction(actionJob, job{N: i}))
			time.Sleep(20 * time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []any{job{N: 3}}, rec.payloads(actionDone))
	})
}

func TestDebounced_SpacedActionsRunEach(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, slowJob("search", epic.Debounced(50*time.Millisecond, epic.Concurrent()), time.Millisecond))

		offer(root, domain.NewAction(actionJob, job{N: 1}))
		time.Sleep(100 * time.Millisecond)
		offer(root, domain.NewAction(actionJob, job{N: 2}))
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []any{job{N: 1}, job{N: 2}}, rec.payloads(actionDone))
	})
}

func TestDebounced_PartitionsByKey(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, slowJob("search", epic.Debounced(50*time.Millisecond), time.Millisecond))

		offer(root,
			domain.NewAction(actionJob, job{Key: "a", N: 1}),
			domain.NewAction(actionJob, job{Key: "b", N: 2}),
			domain.NewAction(actionJob, job{Key: "a", N: 3}),
		)
		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.ElementsMatch(t, []any{job{Key: "b", N: 2}, job{Key: "a", N: 3}}, rec.payloads(actionDone))
	})
}

const (
	actionFetch     = "test/FETCH"
	actionDescribed = "test/DESCRIBED"
	actionConfirmed = "test/CONFIRMED"
	actionGaveUp    = "test/GAVE_UP"
)

func raceHandler() epic.Handler {
	return epic.Handler{
		Name:  "race",
		Types: []string{actionFetch},
		Strategy: epic.RaceWithTimeout(100*time.Millisecond, epic.OfType(actionDescribed), epic.Race{
			OnArrive: func(s *epic.Scope, companion domain.Action) error {
				return s.Emit(domain.NewAction(actionConfirmed, companion.Payload))
			},
			OnTimeout: func(s *epic.Scope) error {
				return s.Emit(domain.NewAction(actionGaveUp, nil))
			},
		}),
		Body: func(s *epic.Scope) error { return nil },
	}
}

func TestRaceWithTimeout_CompanionWins(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, raceHandler())

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(30 * time.Millisecond)
		offer(root, domain.NewAction(actionDescribed, "layer"))
		time.Sleep(200 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{actionConfirmed}, rec.types())
		assert.Equal(t, []any{"layer"}, rec.payloads(actionConfirmed))
	})
}

func TestRaceWithTimeout_DeadlineWins(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		root, rec := newRoot(t, nil, raceHandler())

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(150 * time.Millisecond)
		offer(root, domain.NewAction(actionDescribed, "late"))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		assert.Equal(t, []string{actionGaveUp}, rec.types(), "a late companion never reaches the timed out run")
	})
}

func TestRaceWithTimeout_EchoTriggeredByBodyIsSeen(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var root *epic.Root
		h := raceHandler()
		h.Body = func(s *epic.Scope) error {
			// The echo is offered synchronously, before the body returns.
			root.Offer(s.Context(), domain.NewAction(actionDescribed, "echo"))
			return nil
		}
		var rec *recorder
		root, rec = newRoot(t, nil, h)

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(time.Second)
		synctest.Wait()

		assert.Equal(t, []string{actionConfirmed}, rec.types())
	})
}

func TestRaceWithTimeout_WithoutTimeoutBranchReportsError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := epic.Handler{
			Name:     "bare",
			Types:    []string{actionFetch},
			Strategy: epic.RaceWithTimeout(10*time.Millisecond, epic.OfType(actionDescribed), epic.Race{}),
			Body:     func(s *epic.Scope) error { return nil },
		}
		root, rec := newRoot(t, nil, h)

		offer(root, domain.NewAction(actionFetch, nil))
		time.Sleep(50 * time.Millisecond)
		synctest.Wait()

		require.Equal(t, []string{domain.ActionHandlerError}, rec.types())
		failure := rec.payloads(domain.ActionHandlerError)[0].(domain.Failure)
		assert.Contains(t, failure.Message, domain.ErrTimeout.Error())
	})
}

func TestStrategy_String(t *testing.T) {
	tests := []struct {
		strategy epic.Strategy
		want     string
	}{
		{epic.Concurrent(), "concurrent"},
		{epic.LatestWins(), "latest-wins"},
		{epic.Serialized(), "serialized"},
		{epic.Debounced(300 * time.Millisecond), "debounced(300ms, latest-wins)"},
		{epic.RetryWithBackoff(3, time.Second, epic.Serialized()), "retry(3x1s, serialized)"},
		{epic.RaceWithTimeout(2*time.Second, epic.OfType("x"), epic.Race{}), "race(2s, concurrent)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.String())
		})
	}
}
