package styleeditor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/store"
)

var errEmptyCode = errors.New("style code is empty")

// bracket renders the loading convention with the editor's own actions.
func bracket(name string) epic.Bracket {
	return epic.Bracket{
		Name:  name,
		Start: LoadingStyle,
		End:   func(string) domain.Action { return LoadedStyle() },
		Error: ErrorStyle,
	}
}

type handlers struct {
	cfg     Config
	service Service
}

// Handlers returns the style editor handlers.
func Handlers(cfg Config, service Service) epic.Set {
	if cfg.PreviewDebounce <= 0 {
		cfg.PreviewDebounce = DefaultConfig().PreviewDebounce
	}
	h := &handlers{cfg: cfg, service: service}
	edit := bracket("edit")
	return epic.Set{Handlers: []epic.Handler{
		{
			Name:     "styleeditor.selectTemplate",
			Types:    []string{ActionSelectStyleTemplate},
			Strategy: epic.Serialized(),
			Body:     h.selectTemplate,
		},
		{
			Name:     "styleeditor.preview",
			Types:    []string{ActionUpdateStyleCode},
			Strategy: epic.Debounced(h.cfg.PreviewDebounce, epic.LatestWins()),
			Bracket:  &edit,
			Body:     h.preview,
		},
	}}
}

// selectTemplate writes the template into the temporary style, creating it on first use.
// The loading state settles as soon as the server answered; the overlay and editor
// updates follow.
func (h *handlers) selectTemplate(s *epic.Scope) error {
	tpl, err := domain.PayloadOf[Template](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	current := Current(s.State())

	var id string
	err = s.Bracket(bracket("global"), func() error {
		if current.TemporaryID == "" {
			created, err := h.service.Create(s.Context(), tpl)
			if err != nil {
				return fmt.Errorf("create style: %w", err)
			}
			id = created
			if err := s.Emit(LoadingStyle("created")); err != nil {
				return err
			}
		} else {
			id = current.TemporaryID
			if err := h.service.Update(s.Context(), id, tpl); err != nil {
				return fmt.Errorf("update style %s: %w", id, err)
			}
			if err := s.Emit(LoadingStyle("updated")); err != nil {
				return err
			}
		}
		s.Settle()
		return s.Emit(
			gis.UpdateOptionsByOwner(Owner, map[string]any{"style": id}),
			UpdateTemporaryStyle(id, tpl),
		)
	})
	if err != nil {
		s.Logger().Warn("template not applied", "err", err)
	}
	return nil
}

func (h *handlers) preview(s *epic.Scope) error {
	tpl, err := domain.PayloadOf[Template](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	if strings.TrimSpace(tpl.Code) == "" {
		return epic.Permanent(errEmptyCode)
	}
	id := Current(s.State()).TemporaryID
	if id == "" {
		return epic.Permanent(errors.New("no temporary style to preview, select a template first"))
	}
	if err := h.service.Update(s.Context(), id, tpl); err != nil {
		return fmt.Errorf("update style %s: %w", id, err)
	}
	return s.Emit(UpdateTemporaryStyle(id, tpl))
}

// Current returns the editor state.
func Current(state domain.State) State {
	return domain.SelectOr(state, StateKey, State{})
}

// Reducer maintains State.
func Reducer() store.Reducer {
	return store.On(map[string]func(State, domain.Action) State{
		ActionLoadingStyle: func(cur State, act domain.Action) State {
			st, err := domain.PayloadOf[Status](act)
			if err != nil {
				return cur
			}
			cur.Loading = st.Status
			cur.Error = ""
			return cur
		},
		ActionLoadedStyle: func(cur State, _ domain.Action) State {
			cur.Loading = ""
			return cur
		},
		ActionErrorStyle: func(cur State, act domain.Action) State {
			e, err := domain.PayloadOf[StyleError](act)
			if err != nil {
				return cur
			}
			cur.Error = e.Message
			return cur
		},
		ActionUpdateTemporaryStyle: func(cur State, act domain.Action) State {
			t, err := domain.PayloadOf[TemporaryStyle](act)
			if err != nil {
				return cur
			}
			cur.TemporaryID = t.TemporaryID
			cur.Code = t.Code
			cur.Format = t.Format
			return cur
		},
	})
}
