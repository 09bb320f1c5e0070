/*
Package ripple is a reactive action-effect runtime: features are written as handlers ("epics")
that observe a single timeline of actions, run asynchronous work with explicit concurrency rules
and feed the actions they produce back into the same timeline.

# Concept

Everything that happens is an Action. Collaborators (UI, HTTP, scripts) dispatch actions; the
engine reduces them into an immutable State snapshot, offers them to every matching handler and
finally hands them to subscribers. Handlers never mutate state. They emit new actions through a
one-way Scope and read state through a read-only accessor.

# Key Features

  - Declarative handlers: action types, predicate, correlation key, strategy and bracket are data.
  - Composable strategies: Concurrent, LatestWins, Serialized, Debounced, RaceWithTimeout and
    RetryWithBackoff, keyed per correlation key.
  - Loading brackets: start and end markers are emitted on success, failure and panic.
  - Defect isolation: a panicking handler is halted and reported as an action; siblings go on.
  - Feature teardown: handlers grouped under an activation condition are cancelled and cleaned
    up as soon as the condition turns false.
  - Hot replacement: the handler set can be swapped atomically while the engine runs.

# Usage

	eng, err := ripple.New(
		ripple.WithHandlers(epic.Handler{
			Name:     "search",
			Types:    []string{"SEARCH"},
			Strategy: epic.Debounced(300*time.Millisecond, epic.LatestWins()),
			Bracket:  &epic.Bracket{Name: "search"},
			Body: func(s *epic.Scope) error {
				return s.Emit(domain.NewAction("RESULTS", s.Action().Payload))
			},
		}),
		ripple.WithReducer("loading", store.Loading()),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer eng.Stop(context.Background())

	_ = eng.Dispatch(domain.NewAction("SEARCH", "rivers"))

Handlers are tested without timing flakiness with pkg/epictest and testing/synctest.
*/
package ripple
