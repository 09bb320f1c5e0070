package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/store"
	"golang.org/x/sync/errgroup"
)

type handlers struct {
	cfg      Config
	provider Provider
}

// Handlers returns the catalog handlers.
func Handlers(cfg Config, provider Provider) epic.Set {
	h := &handlers{cfg: cfg.withDefaults(), provider: provider}
	return epic.Set{Handlers: []epic.Handler{
		{
			Name:     "catalog.refreshLayers",
			Types:    []string{ActionRefreshLayers},
			Strategy: epic.Concurrent(),
			Body:     h.refresh,
		},
		{
			Name:     "catalog.search",
			Types:    []string{ActionTextSearch},
			Key:      epic.KeyField("URL"),
			Strategy: epic.Debounced(h.cfg.SearchDebounce, epic.LatestWins()),
			Bracket:  &epic.Bracket{Name: "catalog.search"},
			Body:     h.search,
		},
	}}
}

func (h *handlers) refresh(s *epic.Scope) error {
	req, err := domain.PayloadOf[Refresh](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}

	updates := make([]*LayerUpdate, len(req.Layers))
	failures := make([]*Failure, len(req.Layers))
	policy := epic.RetryPolicy{
		MaxAttempts: h.cfg.RefreshAttempts,
		BaseDelay:   h.cfg.RefreshDelay,
		Notify: func(err error, attempt int, next time.Duration) {
			s.Logger().Debug("capabilities request failed", "attempt", attempt, "retry_in", next, "err", err)
		},
	}

	var g errgroup.Group
	g.SetLimit(h.cfg.RefreshParallelism)
	for i, ref := range req.Layers {
		g.Go(func() error {
			var caps Capabilities
			err := epic.Retry(s.Context(), policy, func(ctx context.Context) error {
				var err error
				caps, err = h.provider.Capabilities(ctx, ref)
				return err
			})
			if err != nil {
				failures[i] = &Failure{Layer: ref, Message: domain.ErrorMessage(err)}
				return nil
			}
			u := update(ref, caps, req.Options)
			updates[i] = &u
			return nil
		})
	}
	_ = g.Wait()
	if err := s.Context().Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}

	var out []domain.Action
	if ok := compact(updates); len(ok) > 0 {
		out = append(out, LayersRefreshed(ok, req.Options))
	}
	if failed := compact(failures); len(failed) > 0 {
		out = append(out, RefreshError(failed))
	}
	return s.Emit(out...)
}

func (h *handlers) search(s *epic.Scope) error {
	req, err := domain.PayloadOf[Search](s.Action())
	if err != nil {
		return epic.Permanent(err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return s.Emit(SearchResults("", nil))
	}
	records, err := h.provider.Search(s.Context(), req.URL, text)
	if err != nil {
		return fmt.Errorf("search %q: %w", text, err)
	}
	return s.Emit(SearchResults(text, records))
}

func update(ref LayerRef, caps Capabilities, opts RefreshOptions) LayerUpdate {
	u := LayerUpdate{Layer: ref}
	if opts.Title {
		u.Title = caps.Title
	}
	if opts.BBox {
		bbox := caps.BBox
		u.BBox = &bbox
	}
	if opts.Formats {
		u.Formats = caps.Formats
	}
	return u
}

func compact[T any](items []*T) []T {
	var out []T
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

// Reducer keeps the latest search results and refresh failures.
func Reducer() store.Reducer {
	return store.On(map[string]func(State, domain.Action) State{
		ActionSearchResults: func(cur State, act domain.Action) State {
			r, err := domain.PayloadOf[Results](act)
			if err != nil {
				return cur
			}
			cur.Text = r.Text
			cur.Records = r.Records
			return cur
		},
		ActionRefreshError: func(cur State, act domain.Action) State {
			f, err := domain.PayloadOf[RefreshFailed](act)
			if err != nil {
				return cur
			}
			cur.Failures = f.Failures
			return cur
		},
		ActionLayersRefreshed: func(cur State, _ domain.Action) State {
			cur.Failures = nil
			return cur
		},
	})
}
