package domain

// Standard action types emitted by the runtime itself.
// Feature packages define their own closed vocabularies next to their handlers.
const (
	// ActionLoading brackets an asynchronous operation.
	// Payload: Loading
	ActionLoading = "ripple/LOADING"

	// ActionError carries a normalized failure of a bracketed operation.
	// Payload: Failure
	ActionError = "ripple/ERROR"

	// ActionNotify is a user-facing notification.
	// Payload: Notification
	ActionNotify = "ripple/NOTIFY"

	// ActionHandlerError reports an error returned by a handler body outside any bracket.
	// Payload: Failure
	ActionHandlerError = "ripple/HANDLER_ERROR"

	// ActionHandlerHalted reports a handler defect (panic). The handler stops reacting.
	// Payload: Failure
	ActionHandlerHalted = "ripple/HANDLER_HALTED"
)

// Loading marker statuses.
const (
	StatusStart = "start"
	StatusEnd   = "end"
)

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// OriginExternal marks actions dispatched from outside any handler (UI, HTTP, scripts).
const OriginExternal = "external"
