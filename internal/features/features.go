// Package features assembles the example features into a registry.
package features

import (
	"github.com/aretw0/ripple/internal/features/catalog"
	"github.com/aretw0/ripple/internal/features/geoprocessing"
	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/internal/features/notifications"
	"github.com/aretw0/ripple/internal/features/styleeditor"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/registry"
	"github.com/aretw0/ripple/pkg/store"
)

// Config tunes every feature.
type Config struct {
	Geoprocessing geoprocessing.Config `mapstructure:"geoprocessing"`
	Catalog       catalog.Config       `mapstructure:"catalog"`
	StyleEditor   styleeditor.Config   `mapstructure:"styleeditor"`
}

// DefaultConfig returns every feature's defaults.
func DefaultConfig() Config {
	return Config{
		Geoprocessing: geoprocessing.DefaultConfig(),
		Catalog:       catalog.DefaultConfig(),
		StyleEditor:   styleeditor.DefaultConfig(),
	}
}

// Deps are the remote collaborators of the features.
type Deps struct {
	Geoprocessing geoprocessing.Provider
	Catalog       catalog.Provider
	Styles        styleeditor.Service
}

// Register adds the features and their action payloads to reg.
func Register(reg *registry.Registry, cfg Config, deps Deps) {
	reg.Register("geoprocessing", func() (epic.Source, error) {
		return geoprocessing.Feature(cfg.Geoprocessing, deps.Geoprocessing), nil
	})
	reg.Register("catalog", func() (epic.Source, error) {
		return catalog.Handlers(cfg.Catalog, deps.Catalog), nil
	})
	reg.Register("styleeditor", func() (epic.Source, error) {
		return styleeditor.Handlers(cfg.StyleEditor, deps.Styles), nil
	})
	reg.Register("notifications", func() (epic.Source, error) {
		return notifications.Handlers(Notifications()...)
	})

	registry.RegisterPayload[domain.Loading](reg, domain.ActionLoading)
	registry.RegisterPayload[domain.Failure](reg, domain.ActionError)
	registry.RegisterPayload[domain.Notification](reg, domain.ActionNotify)

	registry.RegisterPayload[gis.Layer](reg, gis.ActionAddLayer)
	registry.RegisterPayload[gis.LayerRef](reg, gis.ActionRemoveLayer)
	registry.RegisterPayload[gis.AdditionalLayer](reg, gis.ActionUpdateAdditionalLayer)
	registry.RegisterPayload[gis.OwnerRef](reg, gis.ActionRemoveAdditionalLayers)
	registry.RegisterPayload[gis.OwnerOptions](reg, gis.ActionUpdateOptionsByOwner)
	registry.RegisterPayload[gis.MapInfo](reg, gis.ActionChangeMapInfoState)
	registry.RegisterPayload[gis.Click](reg, gis.ActionMapClick)

	registry.RegisterPayload[geoprocessing.LayerSource](reg, geoprocessing.ActionCheckAvailability)
	registry.RegisterPayload[geoprocessing.Availability](reg, geoprocessing.ActionSetAvailability)
	registry.RegisterPayload[geoprocessing.Features](reg, geoprocessing.ActionSetFeatures)
	registry.RegisterPayload[geoprocessing.LayerSource](reg, geoprocessing.ActionDescribeLayer)
	registry.RegisterPayload[geoprocessing.Described](reg, geoprocessing.ActionLayerDescribed)
	registry.RegisterPayload[geoprocessing.Toggle](reg, geoprocessing.ActionSetEnabled)
	registry.RegisterPayload[geoprocessing.LayerSource](reg, geoprocessing.ActionSelectSource)
	registry.RegisterPayload[gis.MapInfo](reg, geoprocessing.ActionSaveMapInfoState)

	registry.RegisterPayload[catalog.Refresh](reg, catalog.ActionRefreshLayers)
	registry.RegisterPayload[catalog.Refreshed](reg, catalog.ActionLayersRefreshed)
	registry.RegisterPayload[catalog.RefreshFailed](reg, catalog.ActionRefreshError)
	registry.RegisterPayload[catalog.Search](reg, catalog.ActionTextSearch)
	registry.RegisterPayload[catalog.Results](reg, catalog.ActionSearchResults)

	registry.RegisterPayload[styleeditor.Template](reg, styleeditor.ActionSelectStyleTemplate)
	registry.RegisterPayload[styleeditor.Template](reg, styleeditor.ActionUpdateStyleCode)
	registry.RegisterPayload[styleeditor.Status](reg, styleeditor.ActionLoadingStyle)
	registry.RegisterPayload[styleeditor.StyleError](reg, styleeditor.ActionErrorStyle)
	registry.RegisterPayload[styleeditor.TemporaryStyle](reg, styleeditor.ActionUpdateTemporaryStyle)
}

// Notifications are the rules turning the features' failures into user-facing messages.
func Notifications() []notifications.Rule {
	return append(notifications.Defaults(),
		notifications.Rule{
			Type:    catalog.ActionRefreshError,
			Title:   "Catalog",
			Level:   domain.LevelWarning,
			Message: refreshFailures,
		},
		notifications.Rule{Type: styleeditor.ActionErrorStyle, Title: "Style editor"},
	)
}

// Reducers lists every slice the features read, keyed by state path.
func Reducers() map[string]store.Reducer {
	out := gis.Reducers()
	out["loading"] = store.Loading()
	out[geoprocessing.StateKey] = geoprocessing.Reducer()
	out[catalog.StateKey] = catalog.Reducer()
	out[styleeditor.StateKey] = styleeditor.Reducer()
	return out
}

func refreshFailures(act domain.Action) string {
	f, err := domain.PayloadOf[catalog.RefreshFailed](act)
	if err != nil || len(f.Failures) == 0 {
		return ""
	}
	if len(f.Failures) == 1 {
		return "could not refresh " + f.Failures[0].Layer.Name + ": " + f.Failures[0].Message
	}
	names := make([]string, 0, len(f.Failures))
	for _, x := range f.Failures {
		names = append(names, x.Layer.Name)
	}
	return "could not refresh " + joinNames(names)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		switch {
		case i == 0:
		case i == len(names)-1:
			out += " and "
		default:
			out += ", "
		}
		out += n
	}
	return out
}
