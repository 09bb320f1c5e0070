package gis

import "github.com/aretw0/ripple/pkg/domain"

// Action types.
const (
	// ActionAddLayer adds or replaces a layer. Payload: Layer
	ActionAddLayer = "gis/ADD_LAYER"

	// ActionRemoveLayer removes a layer. Payload: LayerRef
	ActionRemoveLayer = "gis/REMOVE_LAYER"

	// ActionUpdateAdditionalLayer upserts an overlay by ID. Payload: AdditionalLayer
	ActionUpdateAdditionalLayer = "gis/UPDATE_ADDITIONAL_LAYER"

	// ActionRemoveAdditionalLayers drops every overlay of an owner. Payload: OwnerRef
	ActionRemoveAdditionalLayers = "gis/REMOVE_ADDITIONAL_LAYERS"

	// ActionChangeMapInfoState toggles map info on click. Payload: MapInfo
	ActionChangeMapInfoState = "gis/CHANGE_MAPINFO_STATE"

	// ActionMapClick is a click on the map. Payload: Click
	ActionMapClick = "gis/CLICK_ON_MAP"
)

// LayerRef identifies a layer.
type LayerRef struct {
	ID string `json:"id"`
}

// OwnerRef identifies an overlay owner.
type OwnerRef struct {
	Owner string `json:"owner"`
}

// Click is the payload of ActionMapClick.
type Click struct {
	Point Point `json:"point"`
}

// AddLayer builds ActionAddLayer.
func AddLayer(l Layer) domain.Action {
	return domain.NewAction(ActionAddLayer, l)
}

// RemoveLayer builds ActionRemoveLayer.
func RemoveLayer(id string) domain.Action {
	return domain.NewAction(ActionRemoveLayer, LayerRef{ID: id})
}

// UpdateAdditionalLayer builds ActionUpdateAdditionalLayer.
func UpdateAdditionalLayer(id, owner, actionType string, options map[string]any) domain.Action {
	return domain.NewAction(ActionUpdateAdditionalLayer, AdditionalLayer{
		ID:         id,
		Owner:      owner,
		ActionType: actionType,
		Options:    options,
	})
}

// RemoveAdditionalLayers builds ActionRemoveAdditionalLayers.
func RemoveAdditionalLayers(owner string) domain.Action {
	return domain.NewAction(ActionRemoveAdditionalLayers, OwnerRef{Owner: owner})
}

// ChangeMapInfoState builds ActionChangeMapInfoState.
func ChangeMapInfoState(enabled bool) domain.Action {
	return domain.NewAction(ActionChangeMapInfoState, MapInfo{Enabled: enabled})
}

// MapClick builds ActionMapClick.
func MapClick(p Point) domain.Action {
	return domain.NewAction(ActionMapClick, Click{Point: p})
}

// ActionUpdateOptionsByOwner merges options into every overlay of an owner. Payload: OwnerOptions
const ActionUpdateOptionsByOwner = "gis/UPDATE_OPTIONS_BY_OWNER"

// OwnerOptions is the payload of ActionUpdateOptionsByOwner.
type OwnerOptions struct {
	Owner   string         `json:"owner"`
	Options map[string]any `json:"options"`
}

// UpdateOptionsByOwner builds ActionUpdateOptionsByOwner.
func UpdateOptionsByOwner(owner string, options map[string]any) domain.Action {
	return domain.NewAction(ActionUpdateOptionsByOwner, OwnerOptions{Owner: owner, Options: options})
}
