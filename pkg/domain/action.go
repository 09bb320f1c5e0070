package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is an immutable tagged record flowing through the dispatch bus.
// Payloads are expected to be value types; handlers build new actions instead of editing received ones.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Meta    Meta   `json:"meta"`
}

// Meta carries bookkeeping attached to every action.
type Meta struct {
	// ID uniquely identifies this action instance.
	ID string `json:"id"`

	// Origin is the name of the handler that emitted the action, or OriginExternal.
	Origin string `json:"origin,omitempty"`

	// Cause is the ID of the action whose handling produced this one.
	Cause string `json:"cause,omitempty"`

	// Time is when the action was created.
	Time time.Time `json:"time"`
}

// NewAction creates an action with fresh metadata.
func NewAction(actionType string, payload any) Action {
	return Action{
		Type:    actionType,
		Payload: payload,
		Meta: Meta{
			ID:     uuid.NewString(),
			Origin: OriginExternal,
			Time:   time.Now(),
		},
	}
}

// Is reports whether the action has one of the given types.
func (a Action) Is(types ...string) bool {
	for _, t := range types {
		if a.Type == t {
			return true
		}
	}
	return false
}

// CausedBy returns a copy of the action attributed to origin and caused by parent.
func (a Action) CausedBy(origin string, parent Action) Action {
	if a.Meta.ID == "" {
		a.Meta.ID = uuid.NewString()
	}
	if a.Meta.Time.IsZero() {
		a.Meta.Time = time.Now()
	}
	a.Meta.Origin = origin
	a.Meta.Cause = parent.Meta.ID
	return a
}

// Loading is the payload of ActionLoading markers.
// Name is stable per operation so overlapping brackets can be told apart.
type Loading struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Failure is a normalized description of an error.
type Failure struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Notification is a user-facing message.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// LoadingStart builds the start marker of a bracketed operation.
func LoadingStart(name string) Action {
	return NewAction(ActionLoading, Loading{Name: name, Status: StatusStart})
}

// LoadingEnd builds the end marker of a bracketed operation.
func LoadingEnd(name string) Action {
	return NewAction(ActionLoading, Loading{Name: name, Status: StatusEnd})
}

// Failed builds the normalized error action of a bracketed operation.
func Failed(name string, err error) Action {
	return NewAction(ActionError, Failure{Name: name, Message: ErrorMessage(err)})
}

// Notify builds a user-facing notification.
func Notify(level, title, message string) Action {
	return NewAction(ActionNotify, Notification{Title: title, Message: message, Level: level})
}

// ErrorMessage returns a human readable message for err, never empty.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

// PayloadOf returns the payload as T. Loosely typed payloads (maps decoded from JSON or YAML)
// are converted with Decode.
func PayloadOf[T any](a Action) (T, error) {
	if v, ok := a.Payload.(T); ok {
		return v, nil
	}
	var out T
	if a.Payload == nil {
		return out, fmt.Errorf("%s: %w: missing", a.Type, ErrInvalidPayload)
	}
	if err := Decode(a.Payload, &out); err != nil {
		return out, fmt.Errorf("%s: %w: %w", a.Type, ErrInvalidPayload, err)
	}
	return out, nil
}
