package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEvent(err error) *domain.RunEvent {
	return &domain.RunEvent{
		Handler:  "catalog/refresh",
		Feature:  "catalog",
		Action:   domain.NewAction("catalog/REFRESH", nil),
		Duration: 20 * time.Millisecond,
		Err:      err,
	}
}

func TestMetrics_Hooks(t *testing.T) {
	m, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnDispatch(ctx, &domain.DispatchEvent{Action: domain.NewAction("catalog/REFRESH", nil)})
	hooks.OnRunStart(ctx, runEvent(nil))
	hooks.OnRunStart(ctx, runEvent(nil))
	hooks.OnRunStart(ctx, runEvent(nil))
	hooks.OnRunEnd(ctx, runEvent(nil))
	hooks.OnRunEnd(ctx, runEvent(errors.New("503")))
	hooks.OnCancel(ctx, runEvent(domain.ErrCancelled))
	hooks.OnFeature(ctx, &domain.FeatureEvent{Feature: "catalog", Active: true})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `ripple_actions_dispatched_total{type="catalog/REFRESH"} 1`)
	assert.Contains(t, body, `ripple_runs_total{handler="catalog/refresh",outcome="ok"} 1`)
	assert.Contains(t, body, `ripple_runs_total{handler="catalog/refresh",outcome="error"} 1`)
	assert.Contains(t, body, `ripple_runs_total{handler="catalog/refresh",outcome="cancelled"} 1`)
	assert.Contains(t, body, `ripple_runs_in_flight{handler="catalog/refresh"} 0`)
	assert.Contains(t, body, `ripple_feature_active{feature="catalog"} 1`)
}

func TestMetrics_LintClean(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	m.Hooks().OnHalt(context.Background(), runEvent(errors.New("panic")))

	count, err := testutil.GatherAndCount(reg, "ripple_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)

	hooks.OnRunEnd(context.Background(), runEvent(errors.New("503")))
	hooks.OnHalt(context.Background(), runEvent(errors.New("nil map")))

	out := buf.String()
	assert.Contains(t, out, `level=WARN msg="run failed" handler=catalog/refresh`)
	assert.Contains(t, out, `feature=catalog`)
	assert.Contains(t, out, `level=ERROR msg="handler halted"`)
}

func TestCombine_RunsInOrder(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "b") },
		OnCancel:   func(context.Context, *domain.RunEvent) { calls = append(calls, "b-cancel") },
	}

	combined := observability.Combine(a, domain.LifecycleHooks{}, b)
	combined.OnRunStart(context.Background(), runEvent(nil))
	combined.OnCancel(context.Background(), runEvent(nil))

	assert.Equal(t, []string{"a", "b", "b-cancel"}, calls)
	assert.Nil(t, combined.OnHalt)
}

func TestJournal_RingKeepsNewest(t *testing.T) {
	j := observability.NewJournal(3)
	hooks := j.Hooks()
	for _, typ := range []string{"A", "B", "C", "D"} {
		hooks.OnDispatch(context.Background(), &domain.DispatchEvent{Action: domain.NewAction(typ, nil)})
	}
	hooks.OnFeature(context.Background(), &domain.FeatureEvent{Feature: "geo", Active: false})

	var got []string
	for _, e := range j.Snapshot() {
		got = append(got, e.Kind+":"+e.Action)
	}
	assert.Equal(t, []string{"dispatch:C", "dispatch:D", "feature:deactivated"}, got)
}
