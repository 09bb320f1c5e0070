package geoprocessing

import (
	"fmt"

	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
)

type handlers struct {
	cfg      Config
	provider Provider
}

// Handlers returns the bare handlers, always listening. Feature wraps them with activation.
func Handlers(cfg Config, provider Provider) epic.Set {
	h := &handlers{cfg: cfg.withDefaults(), provider: provider}
	return epic.Set{Handlers: []epic.Handler{
		{
			Name:     "geoprocessing.checkAvailability",
			Types:    []string{ActionCheckAvailability},
			Key:      epic.KeyField("Source"),
			Strategy: epic.LatestWins(),
			Body:     h.checkAvailability,
		},
		{
			Name:    "geoprocessing.describeLayer",
			Types:   []string{ActionDescribeLayer},
			Key:     epic.KeyField("Source"),
			Bracket: &epic.Bracket{Name: "geoprocessing.describe"},
			Strategy: epic.RaceWithTimeout(
				h.cfg.DescribeDeadline,
				epic.OfType(ActionLayerDescribed),
				epic.Race{
					Match:     sameLayer,
					OnArrive:  h.described,
					OnTimeout: h.describeTimedOut,
				},
				epic.RetryWithBackoff(h.cfg.DescribeAttempts, h.cfg.DescribeDelay, epic.LatestWins()),
			),
			Body: h.describe,
		},
		{
			Name:     "geoprocessing.intersect",
			Types:    []string{gis.ActionMapClick},
			Strategy: epic.LatestWins(),
			Bracket:  &epic.Bracket{Name: "geoprocessing.intersect"},
			Body:     h.intersect,
		},
	}}
}

// Feature gates the handlers on Settings.Enabled. While enabled, map info is switched
// off; disabling the tool removes its overlays and restores map info.
func Feature(cfg Config, provider Provider) epic.Feature {
	return epic.Feature{
		Name:     Owner,
		Active:   epic.WhenTrue(StateKey + ".enabled"),
		Handlers: Handlers(cfg, provider).Handlers,
		OnActivate: func(state domain.State) []domain.Action {
			return []domain.Action{
				SaveMapInfoState(gis.MapInfoEnabled(state)),
				gis.ChangeMapInfoState(false),
			}
		},
		OnDeactivate: func(state domain.State) []domain.Action {
			return []domain.Action{
				gis.RemoveAdditionalLayers(Owner),
				gis.ChangeMapInfoState(Current(state).SavedMapInfo),
			}
		},
	}
}

func (h *handlers) checkAvailability(s *epic.Scope) error {
	req, err := domain.PayloadOf[LayerSource](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	layer, ok := gis.FindLayer(s.State(), req.LayerID)
	if !ok {
		return s.Emit(SetAvailability(req.LayerID, false, req.Source))
	}

	switch layer.Type {
	case gis.LayerVector:
		if layer.Features == nil || len(layer.Features.Features) == 0 {
			return s.Emit(SetAvailability(req.LayerID, false, req.Source))
		}
		fc := *layer.Features
		return s.Emit(
			SetAvailability(req.LayerID, true, req.Source),
			SetFeatures(req.LayerID, req.Source, fc, 0, fc.GeometryType()),
		)
	case gis.LayerWMS:
		return s.Emit(DescribeLayer(req.LayerID, req.Source))
	default:
		s.Logger().Debug("layer type cannot be geoprocessed", "layer", layer.ID, "type", layer.Type)
		return s.Emit(SetAvailability(req.LayerID, false, req.Source))
	}
}

func (h *handlers) describe(s *epic.Scope) error {
	req, err := domain.PayloadOf[LayerSource](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	layer, ok := gis.FindLayer(s.State(), req.LayerID)
	if !ok {
		return epic.Permanent(fmt.Errorf("layer %s not found", req.LayerID))
	}
	desc, err := h.provider.Describe(s.Context(), layer)
	if err != nil {
		return fmt.Errorf("describe %s: %w", layer.ID, err)
	}
	desc.LayerID = layer.ID
	return s.Emit(LayerDescribed(req.Source, desc))
}

func (h *handlers) described(s *epic.Scope, companion domain.Action) error {
	req, _ := domain.PayloadOf[LayerSource](s.Action())
	d, err := domain.PayloadOf[Described](companion)
	if err != nil {
		return epic.Permanent(err)
	}
	if !d.Description.Queryable {
		return s.Emit(SetAvailability(req.LayerID, false, req.Source))
	}
	layer, ok := gis.FindLayer(s.State(), req.LayerID)
	if !ok {
		return s.Emit(SetAvailability(req.LayerID, false, req.Source))
	}
	fc, err := h.provider.Features(s.Context(), layer, 0)
	if err != nil {
		return fmt.Errorf("features of %s: %w", layer.ID, err)
	}
	return s.Emit(
		SetAvailability(req.LayerID, true, req.Source),
		SetFeatures(req.LayerID, req.Source, fc, 0, d.Description.GeometryType),
	)
}

func (h *handlers) describeTimedOut(s *epic.Scope) error {
	req, _ := domain.PayloadOf[LayerSource](s.Action())
	return s.Emit(
		SetAvailability(req.LayerID, false, req.Source),
		domain.Notify(domain.LevelWarning, "Geoprocessing",
			fmt.Sprintf("layer %s did not describe itself within %s", req.LayerID, h.cfg.DescribeDeadline)),
	)
}

func (h *handlers) intersect(s *epic.Scope) error {
	click, err := domain.PayloadOf[gis.Click](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	source := Current(s.State()).SourceLayer
	if source == "" {
		return s.Emit(domain.Notify(domain.LevelWarning, "Geoprocessing", "select a source layer before clicking the map"))
	}
	layer, ok := gis.FindLayer(s.State(), source)
	if !ok {
		return epic.Permanent(fmt.Errorf("source layer %s not found", source))
	}
	fc, err := h.provider.Intersect(s.Context(), layer, click.Point)
	if err != nil {
		return err
	}
	return s.Emit(gis.UpdateAdditionalLayer(OverlayID, Owner, "overlay", map[string]any{
		"sourceLayer": layer.ID,
		"features":    fc,
	}))
}

// sameLayer correlates a description with the request that triggered it.
func sameLayer(trigger, companion domain.Action) bool {
	req, err := domain.PayloadOf[LayerSource](trigger)
	if err != nil {
		return false
	}
	d, err := domain.PayloadOf[Described](companion)
	if err != nil {
		return false
	}
	return d.Description.LayerID == req.LayerID && d.Source == req.Source
}
