package ports

import (
	"context"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
)

// Runtime is what driving adapters (HTTP, MCP) need from a running engine.
type Runtime interface {
	Dispatcher

	// State returns the current snapshot.
	State() domain.State

	// Handlers describes the registered handlers.
	Handlers() []epic.Info

	// Subscribe observes every action after it was reduced and offered to the handlers.
	// The returned function unsubscribes.
	Subscribe(fn func(ctx context.Context, act domain.Action)) func()
}
