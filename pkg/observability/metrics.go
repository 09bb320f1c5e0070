package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeHalted    = "halted"
)

// Metrics exports runtime activity to Prometheus.
type Metrics struct {
	registry prometheus.Gatherer

	dispatched *prometheus.CounterVec
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
	features   *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors. A nil registry creates a private one.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_actions_dispatched_total",
			Help: "Total number of actions offered to the composition root",
		}, []string{"type"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ripple_runs_total",
			Help: "Total number of handler runs by outcome",
		}, []string{"handler", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ripple_run_duration_seconds",
			Help:    "Duration of handler runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ripple_runs_in_flight",
			Help: "Handler runs currently executing",
		}, []string{"handler"}),
		features: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ripple_feature_active",
			Help: "1 while a feature is active",
		}, []string{"feature"}),
	}
	for _, c := range []prometheus.Collector{m.dispatched, m.runs, m.duration, m.inFlight, m.features} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	end := func(e *domain.RunEvent, outcome string) {
		m.inFlight.WithLabelValues(e.Handler).Dec()
		m.runs.WithLabelValues(e.Handler, outcome).Inc()
		m.duration.WithLabelValues(e.Handler).Observe(e.Duration.Seconds())
	}
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.dispatched.WithLabelValues(e.Action.Type).Inc()
		},
		OnRunStart: func(_ context.Context, e *domain.RunEvent) {
			m.inFlight.WithLabelValues(e.Handler).Inc()
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				end(e, OutcomeError)
				return
			}
			end(e, OutcomeOK)
		},
		OnCancel: func(_ context.Context, e *domain.RunEvent) {
			end(e, OutcomeCancelled)
		},
		OnHalt: func(_ context.Context, e *domain.RunEvent) {
			end(e, OutcomeHalted)
		},
		OnFeature: func(_ context.Context, e *domain.FeatureEvent) {
			v := 0.0
			if e.Active {
				v = 1
			}
			m.features.WithLabelValues(e.Feature).Set(v)
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
