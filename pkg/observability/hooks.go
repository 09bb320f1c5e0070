package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/ripple/pkg/domain"
)

// LogHooks logs the runtime lifecycle through logger.
// Dispatches and run starts are logged at Debug, failures at Warn and defects at Error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			logger.DebugContext(ctx, "action dispatched",
				"action", e.Action.Type,
				"origin", e.Action.Meta.Origin,
			)
		},
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run started", runAttrs(e)...)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run failed", append(runAttrs(e), "duration", e.Duration, "error", e.Err)...)
				return
			}
			logger.DebugContext(ctx, "run finished", append(runAttrs(e), "duration", e.Duration)...)
		},
		OnCancel: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run cancelled", runAttrs(e)...)
		},
		OnHalt: func(ctx context.Context, e *domain.RunEvent) {
			logger.ErrorContext(ctx, "handler halted", append(runAttrs(e), "error", e.Err)...)
		},
		OnFeature: func(ctx context.Context, e *domain.FeatureEvent) {
			logger.InfoContext(ctx, "feature toggled", "feature", e.Feature, "active", e.Active)
		},
	}
}

func runAttrs(e *domain.RunEvent) []any {
	attrs := []any{"handler", e.Handler, "action", e.Action.Type}
	if e.Feature != "" {
		attrs = append(attrs, "feature", e.Feature)
	}
	if e.Key != "" {
		attrs = append(attrs, "key", e.Key)
	}
	return attrs
}

// Combine merges hook sets. Callbacks run in argument order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnDispatch = chain(out.OnDispatch, h.OnDispatch)
		out.OnRunStart = chain(out.OnRunStart, h.OnRunStart)
		out.OnRunEnd = chain(out.OnRunEnd, h.OnRunEnd)
		out.OnCancel = chain(out.OnCancel, h.OnCancel)
		out.OnHalt = chain(out.OnHalt, h.OnHalt)
		out.OnFeature = chain(out.OnFeature, h.OnFeature)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
