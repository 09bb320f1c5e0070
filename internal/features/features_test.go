package features_test

import (
	"testing"

	"github.com/aretw0/ripple/internal/features"
	"github.com/aretw0/ripple/internal/features/catalog"
	"github.com/aretw0/ripple/internal/features/demo"
	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := registry.NewRegistry()
	features.Register(reg, features.DefaultConfig(), features.Deps{
		Geoprocessing: demo.Geo{},
		Catalog:       demo.Catalog{},
		Styles:        &demo.Styles{},
	})

	assert.Equal(t, []string{"catalog", "geoprocessing", "notifications", "styleeditor"}, reg.Names())

	set, err := reg.Build()
	require.NoError(t, err)
	root := epic.NewRoot()
	require.NoError(t, root.Register(set), "handler names must not collide across features")

	act, err := reg.Decode(domain.NewAction(gis.ActionMapClick, map[string]any{"point": []any{1.5, 2}}))
	require.NoError(t, err)
	assert.Equal(t, gis.Click{Point: gis.Point{1.5, 2}}, act.Payload)
}

func TestNotifications_RefreshFailures(t *testing.T) {
	var rule func(domain.Action) string
	for _, r := range features.Notifications() {
		if r.Type == catalog.ActionRefreshError {
			rule = r.Message
		}
	}
	require.NotNil(t, rule)

	one := catalog.RefreshError([]catalog.Failure{{Layer: catalog.LayerRef{Name: "a"}, Message: "down"}})
	assert.Equal(t, "could not refresh a: down", rule(one))

	three := catalog.RefreshError([]catalog.Failure{
		{Layer: catalog.LayerRef{Name: "a"}},
		{Layer: catalog.LayerRef{Name: "b"}},
		{Layer: catalog.LayerRef{Name: "c"}},
	})
	assert.Equal(t, "could not refresh a, b and c", rule(three))
}
