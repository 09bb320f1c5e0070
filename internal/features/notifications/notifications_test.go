package notifications_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/ripple/internal/features/notifications"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epictest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailuresBecomeNotifications(t *testing.T) {
	rules := append(notifications.Defaults(), notifications.Rule{
		Type:  "style/ERROR",
		Title: "Style",
	})
	set, err := notifications.Handlers(rules...)
	require.NoError(t, err)

	epictest.Drive(t, set, epictest.Count(2),
		[]domain.Action{
			domain.Failed("catalog.search", errors.New("csw down")),
			domain.NewAction("style/ERROR", map[string]any{"message": "bad css"}),
			domain.NewAction("unrelated", nil),
		},
		func(actions []domain.Action) {
			got := map[string]domain.Notification{}
			for _, a := range actions {
				n := a.Payload.(domain.Notification)
				got[n.Title] = n
			}
			assert.Equal(t, domain.Notification{Title: "Operation failed", Message: "catalog.search: csw down", Level: domain.LevelError}, got["Operation failed"])
			assert.Equal(t, domain.Notification{Title: "Style", Message: "bad css", Level: domain.LevelError}, got["Style"])
		},
	)
}

func TestFailuresWithoutMessageAreDropped(t *testing.T) {
	set, err := notifications.Handlers(notifications.Rule{Type: "x/ERROR", Title: "X"})
	require.NoError(t, err)

	epictest.Drive(t, epictest.WithTimeout(set, 50*time.Millisecond), epictest.Count(1),
		[]domain.Action{domain.NewAction("x/ERROR", nil)},
		func(actions []domain.Action) {
			assert.Equal(t, []string{epictest.ActionTimeout}, epictest.Types(actions))
		},
	)
}

func TestRuleWithoutType(t *testing.T) {
	_, err := notifications.Handlers(notifications.Rule{Title: "broken"})
	assert.Error(t, err)
}
