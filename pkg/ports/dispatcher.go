package ports

import "github.com/aretw0/ripple/pkg/domain"

// Dispatcher accepts actions into the timeline.
// The bus implements it, and so does the engine facade.
type Dispatcher interface {
	Dispatch(acts ...domain.Action) error
}
