package epic

import (
	"context"
	"sync"

	"github.com/aretw0/ripple/pkg/domain"
)

// Run is the in-flight execution of a handler body for one triggering action.
// Cancel is the explicit cancellation capability: once it returns, the run can no longer emit.
type Run struct {
	ctx    context.Context
	cancel context.CancelFunc

	handler string
	key     string
	action  domain.Action

	mu        sync.Mutex
	cancelled bool
	done      chan struct{}

	// onCancel runs under mu when the run is first cancelled.
	onCancel func()
}

func newRun(parent context.Context, handler, key string, act domain.Action) *Run {
	ctx, cancel := context.WithCancel(parent)
	return &Run{
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
		key:     key,
		action:  act,
		done:    make(chan struct{}),
	}
}

// Cancel stops the run. Open brackets get their end markers before the gate closes,
// so busy state never outlives the run. It is idempotent and does not wait for the body to return.
func (r *Run) Cancel() {
	r.mu.Lock()
	if !r.cancelled {
		if r.onCancel != nil {
			r.onCancel()
		}
		r.cancelled = true
	}
	r.mu.Unlock()
	r.cancel()
}

// Cancelled reports whether Cancel was called.
func (r *Run) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Done is closed when the body has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Key returns the correlation key of the run.
func (r *Run) Key() string {
	return r.key
}

// Action returns the triggering action.
func (r *Run) Action() domain.Action {
	return r.action
}

// gate runs fn unless the run was cancelled. Holding the lock while fn runs
// guarantees nothing is emitted after Cancel returns.
func (r *Run) gate(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return domain.ErrCancelled
	}
	return fn()
}

func (r *Run) finish() {
	r.cancel()
	close(r.done)
}
