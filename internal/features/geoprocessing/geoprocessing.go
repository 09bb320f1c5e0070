// Package geoprocessing checks which layers can take part in spatial operations and
// intersects map clicks with a source layer, drawing the result as an overlay.
package geoprocessing

import (
	"context"
	"time"

	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/pkg/domain"
)

// Owner tags the overlays and feature-scoped actions of this package.
const Owner = "geoprocessing"

// OverlayID is the additional layer holding intersection results.
const OverlayID = "geoprocessing.intersection"

// StateKey is where Settings lives.
const StateKey = "geoprocessing"

// Action types.
const (
	// ActionCheckAvailability asks whether a layer can be used. Payload: LayerSource
	ActionCheckAvailability = "geoprocessing/CHECK_AVAILABILITY"

	// ActionSetAvailability reports the outcome. Payload: Availability
	ActionSetAvailability = "geoprocessing/SET_AVAILABILITY"

	// ActionSetFeatures hands a page of layer features to the source that asked. Payload: Features
	ActionSetFeatures = "geoprocessing/SET_FEATURES"

	// ActionDescribeLayer requests a remote description. Payload: LayerSource
	ActionDescribeLayer = "geoprocessing/DESCRIBE_LAYER"

	// ActionLayerDescribed carries a remote description. Payload: Described
	ActionLayerDescribed = "geoprocessing/LAYER_DESCRIBED"

	// ActionSetEnabled turns the tool on or off. Payload: Toggle
	ActionSetEnabled = "geoprocessing/SET_ENABLED"

	// ActionSelectSource picks the layer clicks are intersected with. Payload: LayerSource
	ActionSelectSource = "geoprocessing/SELECT_SOURCE"

	// ActionSaveMapInfoState remembers map info before the tool disables it. Payload: gis.MapInfo
	ActionSaveMapInfoState = "geoprocessing/SAVE_MAPINFO_STATE"
)

// LayerSource names a layer and the form field (source) that asked about it.
type LayerSource struct {
	LayerID string `json:"layerId"`
	Source  string `json:"source"`
}

// Availability is the payload of ActionSetAvailability.
type Availability struct {
	LayerID   string `json:"layerId"`
	Available bool   `json:"available"`
	Source    string `json:"source"`
}

// Features is the payload of ActionSetFeatures.
type Features struct {
	LayerID      string                `json:"layerId"`
	Source       string                `json:"source"`
	Collection   gis.FeatureCollection `json:"collection"`
	Page         int                   `json:"page"`
	GeometryType string                `json:"geometryType"`
}

// Described is the payload of ActionLayerDescribed.
type Described struct {
	Source      string          `json:"source"`
	Description gis.Description `json:"description"`
}

// Toggle is the payload of ActionSetEnabled.
type Toggle struct {
	Enabled bool `json:"enabled"`
}

// Settings is the slice stored under StateKey.
type Settings struct {
	Enabled      bool            `json:"enabled" mapstructure:"enabled"`
	SourceLayer  string          `json:"sourceLayer,omitempty" mapstructure:"sourceLayer"`
	SavedMapInfo bool            `json:"savedMapInfo" mapstructure:"savedMapInfo"`
	Available    map[string]bool `json:"available,omitempty" mapstructure:"available"`
}

// Provider talks to the remote services behind WMS layers and performs intersections.
type Provider interface {
	Describe(ctx context.Context, layer gis.Layer) (gis.Description, error)
	Features(ctx context.Context, layer gis.Layer, page int) (gis.FeatureCollection, error)
	Intersect(ctx context.Context, layer gis.Layer, at gis.Point) (gis.FeatureCollection, error)
}

// Config tunes the handlers.
type Config struct {
	// DescribeDeadline bounds the wait for a layer description, retries included.
	DescribeDeadline time.Duration `mapstructure:"describe_deadline"`

	// DescribeAttempts and DescribeDelay drive the retry of failing describe calls.
	DescribeAttempts int           `mapstructure:"describe_attempts"`
	DescribeDelay    time.Duration `mapstructure:"describe_delay"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		DescribeDeadline: 10 * time.Second,
		DescribeAttempts: 3,
		DescribeDelay:    500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DescribeDeadline <= 0 {
		c.DescribeDeadline = d.DescribeDeadline
	}
	if c.DescribeAttempts <= 0 {
		c.DescribeAttempts = d.DescribeAttempts
	}
	if c.DescribeDelay <= 0 {
		c.DescribeDelay = d.DescribeDelay
	}
	return c
}

// CheckAvailability builds ActionCheckAvailability.
func CheckAvailability(layerID, source string) domain.Action {
	return domain.NewAction(ActionCheckAvailability, LayerSource{LayerID: layerID, Source: source})
}

// SetAvailability builds ActionSetAvailability.
func SetAvailability(layerID string, available bool, source string) domain.Action {
	return domain.NewAction(ActionSetAvailability, Availability{LayerID: layerID, Available: available, Source: source})
}

// SetFeatures builds ActionSetFeatures.
func SetFeatures(layerID, source string, fc gis.FeatureCollection, page int, geometryType string) domain.Action {
	return domain.NewAction(ActionSetFeatures, Features{
		LayerID:      layerID,
		Source:       source,
		Collection:   fc,
		Page:         page,
		GeometryType: geometryType,
	})
}

// DescribeLayer builds ActionDescribeLayer.
func DescribeLayer(layerID, source string) domain.Action {
	return domain.NewAction(ActionDescribeLayer, LayerSource{LayerID: layerID, Source: source})
}

// LayerDescribed builds ActionLayerDescribed.
func LayerDescribed(source string, d gis.Description) domain.Action {
	return domain.NewAction(ActionLayerDescribed, Described{Source: source, Description: d})
}

// SetEnabled builds ActionSetEnabled.
func SetEnabled(enabled bool) domain.Action {
	return domain.NewAction(ActionSetEnabled, Toggle{Enabled: enabled})
}

// SelectSource builds ActionSelectSource.
func SelectSource(layerID string) domain.Action {
	return domain.NewAction(ActionSelectSource, LayerSource{LayerID: layerID})
}

// SaveMapInfoState builds ActionSaveMapInfoState.
func SaveMapInfoState(enabled bool) domain.Action {
	return domain.NewAction(ActionSaveMapInfoState, gis.MapInfo{Enabled: enabled})
}
