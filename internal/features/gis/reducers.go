package gis

import (
	"maps"
	"slices"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/store"
)

// LayersReducer maintains LayerState.
func LayersReducer() store.Reducer {
	return store.On(map[string]func(LayerState, domain.Action) LayerState{
		ActionAddLayer: func(cur LayerState, act domain.Action) LayerState {
			l, err := domain.PayloadOf[Layer](act)
			if err != nil {
				return cur
			}
			next := cur.clone()
			if i := slices.IndexFunc(next.Layers, func(x Layer) bool { return x.ID == l.ID }); i >= 0 {
				next.Layers[i] = l
			} else {
				next.Layers = append(next.Layers, l)
			}
			return next
		},
		ActionRemoveLayer: func(cur LayerState, act domain.Action) LayerState {
			ref, err := domain.PayloadOf[LayerRef](act)
			if err != nil {
				return cur
			}
			next := cur.clone()
			next.Layers = slices.DeleteFunc(next.Layers, func(x Layer) bool { return x.ID == ref.ID })
			return next
		},
		ActionUpdateAdditionalLayer: func(cur LayerState, act domain.Action) LayerState {
			a, err := domain.PayloadOf[AdditionalLayer](act)
			if err != nil {
				return cur
			}
			next := cur.clone()
			if i := slices.IndexFunc(next.Additional, func(x AdditionalLayer) bool { return x.ID == a.ID }); i >= 0 {
				next.Additional[i] = a
			} else {
				next.Additional = append(next.Additional, a)
			}
			return next
		},
		ActionUpdateOptionsByOwner: func(cur LayerState, act domain.Action) LayerState {
			upd, err := domain.PayloadOf[OwnerOptions](act)
			if err != nil {
				return cur
			}
			next := cur.clone()
			for i, a := range next.Additional {
				if a.Owner != upd.Owner {
					continue
				}
				opts := maps.Clone(a.Options)
				if opts == nil {
					opts = make(map[string]any, len(upd.Options))
				}
				maps.Copy(opts, upd.Options)
				next.Additional[i].Options = opts
			}
			return next
		},
		ActionRemoveAdditionalLayers: func(cur LayerState, act domain.Action) LayerState {
			ref, err := domain.PayloadOf[OwnerRef](act)
			if err != nil {
				return cur
			}
			next := cur.clone()
			next.Additional = slices.DeleteFunc(next.Additional, func(x AdditionalLayer) bool { return x.Owner == ref.Owner })
			return next
		},
	})
}

// MapInfoReducer maintains MapInfo.
func MapInfoReducer() store.Reducer {
	return store.On(map[string]func(MapInfo, domain.Action) MapInfo{
		ActionChangeMapInfoState: func(cur MapInfo, act domain.Action) MapInfo {
			m, err := domain.PayloadOf[MapInfo](act)
			if err != nil {
				return cur
			}
			return m
		},
	})
}

// Reducers lists the slices owned by this package keyed by state path.
func Reducers() map[string]store.Reducer {
	return map[string]store.Reducer{
		StateLayers:  LayersReducer(),
		StateMapInfo: MapInfoReducer(),
	}
}

func (s LayerState) clone() LayerState {
	return LayerState{
		Layers:     slices.Clone(s.Layers),
		Additional: slices.Clone(s.Additional),
	}
}
