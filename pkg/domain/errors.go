package domain

import "errors"

var (
	// ErrTimeout is returned when a wait for a companion action exceeds its deadline.
	ErrTimeout = errors.New("timed out waiting for action")

	// ErrCancelled is returned by operations whose run was cancelled.
	ErrCancelled = errors.New("run cancelled")

	// ErrStateNotFound is returned by selectors when the requested path does not exist.
	ErrStateNotFound = errors.New("state path not found")

	// ErrBusStopped is returned when dispatching on a bus that is not running.
	ErrBusStopped = errors.New("dispatch bus is not running")

	// ErrBusRunning is returned when Run is called on a bus that is already running.
	ErrBusRunning = errors.New("dispatch bus is already running")

	// ErrDuplicateHandler is returned when two handlers share a name in one set.
	ErrDuplicateHandler = errors.New("duplicate handler name")

	// ErrInvalidHandler is returned when a handler descriptor is incomplete.
	ErrInvalidHandler = errors.New("invalid handler")

	// ErrHandlerPanic matches errors produced by recovering a panicking handler body.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrInvalidPayload is returned when an action payload cannot be converted to its expected type.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrCacheMiss is returned by caches when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)
