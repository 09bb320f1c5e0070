// Package epic is the reactive runtime: handlers ("epics") observe the action timeline, run asynchronous
// work under a concurrency strategy and feed their results back as new actions.
//
// A Handler is declarative. It names the action types it reacts to, how to derive a correlation key,
// which Strategy governs overlapping triggers and, optionally, the Bracket that surrounds its work:
//
//	epic.Handler{
//		Name:     "catalog/search",
//		Types:    []string{catalog.ActionTextSearch},
//		Strategy: epic.Debounced(300*time.Millisecond, epic.LatestWins()),
//		Bracket:  &epic.Bracket{Name: "catalogSearch"},
//		Body: func(s *epic.Scope) error {
//			records, err := provider.Search(s.Context(), text)
//			if err != nil {
//				return err
//			}
//			return s.Emit(catalog.SearchResults(records))
//		},
//	}
//
// Handlers are registered in a Root, the composition root offered every action by the bus.
// Features group handlers under an activation condition and own their teardown.
package epic
