// Package styleeditor edits layer styles through a temporary style kept on the server:
// selecting a template creates (or rewrites) the temporary style and points the preview
// overlay at it, and code edits are previewed as the user types.
package styleeditor

import (
	"context"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
)

// Owner tags the preview overlay options.
const Owner = "styleeditor"

// StateKey is where State lives.
const StateKey = "styleeditor"

// Action types.
const (
	// ActionSelectStyleTemplate applies a template. Payload: Template
	ActionSelectStyleTemplate = "styleeditor/SELECT_STYLE_TEMPLATE"

	// ActionUpdateStyleCode edits the code of the temporary style. Payload: Template
	ActionUpdateStyleCode = "styleeditor/UPDATE_STYLE_CODE"

	// ActionLoadingStyle marks a style request in progress. Payload: Status
	ActionLoadingStyle = "styleeditor/LOADING_STYLE"

	// ActionLoadedStyle marks the end of a style request. No payload.
	ActionLoadedStyle = "styleeditor/LOADED_STYLE"

	// ActionErrorStyle reports a failed style request. Payload: StyleError
	ActionErrorStyle = "styleeditor/ERROR_STYLE"

	// ActionUpdateTemporaryStyle stores the temporary style the editor works on. Payload: TemporaryStyle
	ActionUpdateTemporaryStyle = "styleeditor/UPDATE_TEMPORARY_STYLE"
)

// Template is a style body in a given format (css, sld...).
type Template struct {
	Code   string `json:"code"`
	Format string `json:"format"`
}

// Status is the payload of ActionLoadingStyle.
type Status struct {
	Status string `json:"status"`
}

// StyleError is the payload of ActionErrorStyle.
type StyleError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TemporaryStyle is the payload of ActionUpdateTemporaryStyle.
type TemporaryStyle struct {
	TemporaryID string `json:"temporaryId"`
	Code        string `json:"code"`
	Format      string `json:"format"`
}

// State is the slice stored under StateKey.
type State struct {
	TemporaryID string `json:"temporaryId,omitempty" mapstructure:"temporaryId"`
	Code        string `json:"code,omitempty" mapstructure:"code"`
	Format      string `json:"format,omitempty" mapstructure:"format"`
	Loading     string `json:"loading,omitempty" mapstructure:"loading"`
	Error       string `json:"error,omitempty" mapstructure:"error"`
}

// Service stores styles on the server.
type Service interface {
	// Create stores a new style and returns the id the server assigned to it.
	Create(ctx context.Context, style Template) (string, error)
	Update(ctx context.Context, id string, style Template) error
}

// Config tunes the handlers.
type Config struct {
	PreviewDebounce time.Duration `mapstructure:"preview_debounce"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{PreviewDebounce: 500 * time.Millisecond}
}

// SelectStyleTemplate builds ActionSelectStyleTemplate.
func SelectStyleTemplate(code, format string) domain.Action {
	return domain.NewAction(ActionSelectStyleTemplate, Template{Code: code, Format: format})
}

// UpdateStyleCode builds ActionUpdateStyleCode.
func UpdateStyleCode(code, format string) domain.Action {
	return domain.NewAction(ActionUpdateStyleCode, Template{Code: code, Format: format})
}

// LoadingStyle builds ActionLoadingStyle.
func LoadingStyle(status string) domain.Action {
	return domain.NewAction(ActionLoadingStyle, Status{Status: status})
}

// LoadedStyle builds ActionLoadedStyle.
func LoadedStyle() domain.Action {
	return domain.NewAction(ActionLoadedStyle, nil)
}

// ErrorStyle builds ActionErrorStyle.
func ErrorStyle(status string, err error) domain.Action {
	return domain.NewAction(ActionErrorStyle, StyleError{Status: status, Message: domain.ErrorMessage(err)})
}

// UpdateTemporaryStyle builds ActionUpdateTemporaryStyle.
func UpdateTemporaryStyle(id string, t Template) domain.Action {
	return domain.NewAction(ActionUpdateTemporaryStyle, TemporaryStyle{TemporaryID: id, Code: t.Code, Format: t.Format})
}
