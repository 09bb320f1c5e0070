package geoprocessing

import (
	"maps"

	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/store"
)

// Reducer maintains Settings.
func Reducer() store.Reducer {
	return store.On(map[string]func(Settings, domain.Action) Settings{
		ActionSetEnabled: func(cur Settings, act domain.Action) Settings {
			t, err := domain.PayloadOf[Toggle](act)
			if err != nil {
				return cur
			}
			cur.Enabled = t.Enabled
			return cur
		},
		ActionSelectSource: func(cur Settings, act domain.Action) Settings {
			ref, err := domain.PayloadOf[LayerSource](act)
			if err != nil {
				return cur
			}
			cur.SourceLayer = ref.LayerID
			return cur
		},
		ActionSaveMapInfoState: func(cur Settings, act domain.Action) Settings {
			m, err := domain.PayloadOf[gis.MapInfo](act)
			if err != nil {
				return cur
			}
			cur.SavedMapInfo = m.Enabled
			return cur
		},
		ActionSetAvailability: func(cur Settings, act domain.Action) Settings {
			a, err := domain.PayloadOf[Availability](act)
			if err != nil {
				return cur
			}
			cur.Available = maps.Clone(cur.Available)
			if cur.Available == nil {
				cur.Available = make(map[string]bool)
			}
			cur.Available[a.LayerID] = a.Available
			return cur
		},
	})
}

// Current returns the settings in state.
func Current(state domain.State) Settings {
	return domain.SelectOr(state, StateKey, Settings{})
}
