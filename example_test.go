package ripple_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/ripple"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/store"
)

// ExampleNew wires a debounced, bracketed search handler and prints what reaches subscribers.
func ExampleNew() {
	search := epic.Handler{
		Name:     "search",
		Types:    []string{"SEARCH"},
		Key:      epic.KeyField("Catalog"),
		Strategy: epic.Debounced(300*time.Millisecond, epic.LatestWins()),
		Bracket:  &epic.Bracket{Name: "search"},
		Body: func(s *epic.Scope) error {
			return s.Emit(domain.NewAction("RESULTS", s.Action().Payload))
		},
	}

	eng, err := ripple.New(
		ripple.WithHandlers(search),
		ripple.WithReducer("loading", store.Loading()),
	)
	if err != nil {
		log.Fatal(err)
	}
	eng.Subscribe(func(_ context.Context, act domain.Action) {
		fmt.Println(act.Type, act.Meta.Origin)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer eng.Stop(context.Background())

	payload := map[string]string{"Catalog": "csw", "Text": "rivers"}
	_ = eng.Dispatch(domain.NewAction("SEARCH", payload))
	<-ctx.Done()
}
