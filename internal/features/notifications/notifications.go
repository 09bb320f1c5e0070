// Package notifications turns failure actions into user-facing notifications.
package notifications

import (
	"errors"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/dsl"
	"github.com/aretw0/ripple/pkg/epic"
)

// Rule maps one action type to a notification.
type Rule struct {
	Type  string
	Title string
	Level string

	// Message extracts the text. Nil reads a "message" payload field.
	Message func(act domain.Action) string
}

// Defaults covers the failures the runtime reports by itself.
func Defaults() []Rule {
	return []Rule{
		{Type: domain.ActionError, Title: "Operation failed", Level: domain.LevelError, Message: failure},
		{Type: domain.ActionHandlerError, Title: "Unexpected error", Level: domain.LevelWarning, Message: failure},
		{Type: domain.ActionHandlerHalted, Title: "Feature stopped", Level: domain.LevelError, Message: failure},
	}
}

// Handlers fans every matching failure out into a notification. Runs are independent.
func Handlers(rules ...Rule) (epic.Set, error) {
	byType := make(map[string]Rule, len(rules))
	types := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Type == "" {
			return epic.Set{}, errors.New("notification rule without type")
		}
		if _, dup := byType[r.Type]; !dup {
			types = append(types, r.Type)
		}
		if r.Level == "" {
			r.Level = domain.LevelError
		}
		byType[r.Type] = r
	}

	b := dsl.New()
	b.Add("notifications.failures").
		On(types...).
		Concurrent().
		Emit(func(act domain.Action, _ domain.State) []domain.Action {
			r := byType[act.Type]
			msg := message(act)
			if r.Message != nil {
				msg = r.Message(act)
			}
			if msg == "" {
				return nil
			}
			return []domain.Action{domain.Notify(r.Level, r.Title, msg)}
		})
	return b.Build()
}

func failure(act domain.Action) string {
	f, err := domain.PayloadOf[domain.Failure](act)
	if err != nil {
		return ""
	}
	if f.Name == "" {
		return f.Message
	}
	return f.Name + ": " + f.Message
}

func message(act domain.Action) string {
	var fields struct {
		Message string `mapstructure:"message"`
	}
	if err := domain.Decode(act.Payload, &fields); err != nil {
		return ""
	}
	return fields.Message
}
