// Package demo provides in-process stand-ins for the remote services the features call,
// so the engine can be served and scripted without a map server.
package demo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/ripple/internal/features/catalog"
	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/internal/features/styleeditor"
	"github.com/google/uuid"
)

// Latency is applied to every call so strategies have something to overlap.
type Latency time.Duration

func (l Latency) wait(ctx context.Context) error {
	if l <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(l))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Geo answers describe, features and intersection requests from canned data.
type Geo struct {
	Latency Latency
}

// Describe reports every WMS layer as a queryable polygon layer.
func (g Geo) Describe(ctx context.Context, layer gis.Layer) (gis.Description, error) {
	if err := g.Latency.wait(ctx); err != nil {
		return gis.Description{}, err
	}
	if layer.URL == "" {
		return gis.Description{}, fmt.Errorf("layer %s has no service url", layer.ID)
	}
	return gis.Description{LayerID: layer.ID, GeometryType: "Polygon", Queryable: true}, nil
}

// Features returns one page with a single square around the origin.
func (g Geo) Features(ctx context.Context, layer gis.Layer, page int) (gis.FeatureCollection, error) {
	if err := g.Latency.wait(ctx); err != nil {
		return gis.FeatureCollection{}, err
	}
	if page > 0 {
		return gis.Collection(), nil
	}
	return gis.Collection(gis.Feature{
		ID:         layer.ID + ".1",
		Geometry:   gis.Geometry{Type: "Polygon", Coordinates: [][][2]float64{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}},
		Properties: map[string]any{"layer": layer.Name},
	}), nil
}

// Intersect returns the clicked point tagged with the layer it was intersected with.
func (g Geo) Intersect(ctx context.Context, layer gis.Layer, at gis.Point) (gis.FeatureCollection, error) {
	if err := g.Latency.wait(ctx); err != nil {
		return gis.FeatureCollection{}, err
	}
	f := gis.PointFeature(layer.ID+".hit", at)
	f.Properties = map[string]any{"layer": layer.Name}
	return gis.Collection(f), nil
}

// Catalog serves capabilities and records from memory.
type Catalog struct {
	Latency Latency

	// Layers maps layer names to their capabilities. Unknown names fail.
	Layers  map[string]catalog.Capabilities
	Records []catalog.Record
}

// Capabilities implements catalog.Provider.
func (c Catalog) Capabilities(ctx context.Context, layer catalog.LayerRef) (catalog.Capabilities, error) {
	if err := c.Latency.wait(ctx); err != nil {
		return catalog.Capabilities{}, err
	}
	caps, ok := c.Layers[layer.Name]
	if !ok {
		return catalog.Capabilities{}, fmt.Errorf("layer %s not advertised by %s", layer.Name, layer.URL)
	}
	return caps, nil
}

// Search implements catalog.Provider with a case-insensitive title match.
func (c Catalog) Search(ctx context.Context, _ string, text string) ([]catalog.Record, error) {
	if err := c.Latency.wait(ctx); err != nil {
		return nil, err
	}
	var out []catalog.Record
	for _, r := range c.Records {
		if strings.Contains(strings.ToLower(r.Title), strings.ToLower(text)) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Styles keeps styles in memory and names new ones like a map server would.
type Styles struct {
	Latency Latency

	mu     sync.Mutex
	styles map[string]styleeditor.Template
}

// Create implements styleeditor.Service.
func (s *Styles) Create(ctx context.Context, style styleeditor.Template) (string, error) {
	if err := s.Latency.wait(ctx); err != nil {
		return "", err
	}
	id := "tmp_style_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.styles == nil {
		s.styles = make(map[string]styleeditor.Template)
	}
	s.styles[id] = style
	return id, nil
}

// Update implements styleeditor.Service.
func (s *Styles) Update(ctx context.Context, id string, style styleeditor.Template) error {
	if err := s.Latency.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.styles[id]; !ok {
		return fmt.Errorf("style %s not found", id)
	}
	s.styles[id] = style
	return nil
}

// Get returns a stored style.
func (s *Styles) Get(id string) (styleeditor.Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.styles[id]
	return t, ok
}
