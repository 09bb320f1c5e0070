package epic

import (
	"errors"
	"fmt"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/cenkalti/backoff/v4"
)

// PanicError is produced when a handler body panics.
type PanicError struct {
	Handler string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %q panicked: %v", e.Handler, e.Value)
}

// Is makes errors.Is(err, domain.ErrHandlerPanic) work.
func (e *PanicError) Is(target error) bool {
	return target == domain.ErrHandlerPanic
}

// HandlerError wraps an error returned by a handler body for one triggering action.
type HandlerError struct {
	Handler string
	Action  string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q failed on %s: %v", e.Handler, e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not retryable by Retry and RetryWithBackoff.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

func isCancelled(err error) bool {
	return errors.Is(err, domain.ErrCancelled)
}
