// Package gis holds the map model shared by the example features: layers, overlays,
// map-info state and the GeoJSON-like feature collections they carry.
package gis

import (
	"github.com/aretw0/ripple/pkg/domain"
)

// Layer types.
const (
	LayerVector = "vector"
	LayerWMS    = "wms"
)

// State keys of the slices owned by this package.
const (
	StateLayers  = "layers"
	StateMapInfo = "mapInfo"
)

// Point is a longitude/latitude pair.
type Point [2]float64

// Geometry is a GeoJSON geometry.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// Feature is a GeoJSON feature.
type Feature struct {
	ID         string         `json:"id,omitempty"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties,omitempty"`
}

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Collection builds a FeatureCollection.
func Collection(features ...Feature) FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// PointFeature builds a feature with a Point geometry.
func PointFeature(id string, p Point) Feature {
	return Feature{ID: id, Geometry: Geometry{Type: "Point", Coordinates: []float64{p[0], p[1]}}}
}

// GeometryType returns the geometry type of the first feature, or "" when empty.
func (c FeatureCollection) GeometryType() string {
	if len(c.Features) == 0 {
		return ""
	}
	return c.Features[0].Geometry.Type
}

// Layer is a map layer known to the client.
type Layer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`

	// Features is set for vector layers whose data lives in the client.
	Features *FeatureCollection `json:"features,omitempty"`
}

// Description is what a remote service tells about a layer.
type Description struct {
	LayerID      string   `json:"layerId"`
	GeometryType string   `json:"geometryType"`
	Queryable    bool     `json:"queryable"`
	Fields       []string `json:"fields,omitempty"`
}

// AdditionalLayer is an overlay owned by a feature, drawn on top of the regular layers.
type AdditionalLayer struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	ActionType string         `json:"actionType"`
	Options    map[string]any `json:"options,omitempty"`
}

// LayerState is the slice stored under StateLayers.
type LayerState struct {
	Layers     []Layer           `json:"layers"`
	Additional []AdditionalLayer `json:"additional"`
}

// MapInfo is the slice stored under StateMapInfo.
type MapInfo struct {
	Enabled bool `json:"enabled"`
}

// FindLayer looks a layer up by id in the current snapshot.
func FindLayer(state domain.State, id string) (Layer, bool) {
	ls := domain.SelectOr(state, StateLayers, LayerState{})
	for _, l := range ls.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Overlays returns the additional layers of owner.
func Overlays(state domain.State, owner string) []AdditionalLayer {
	ls := domain.SelectOr(state, StateLayers, LayerState{})
	var out []AdditionalLayer
	for _, a := range ls.Additional {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out
}

// MapInfoEnabled reports whether clicking the map shows feature info.
func MapInfoEnabled(state domain.State) bool {
	return domain.SelectOr(state, StateMapInfo, MapInfo{}).Enabled
}
