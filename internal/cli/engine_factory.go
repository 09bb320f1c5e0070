package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ripple"
	"github.com/aretw0/ripple/internal/config"
	"github.com/aretw0/ripple/internal/features"
	"github.com/aretw0/ripple/internal/features/catalog"
	"github.com/aretw0/ripple/internal/features/demo"
	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/internal/validator"
	"github.com/aretw0/ripple/pkg/adapters/memory"
	"github.com/aretw0/ripple/pkg/adapters/redis"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/observability"
	"github.com/aretw0/ripple/pkg/ports"
	"github.com/aretw0/ripple/pkg/registry"
)

// JournalSize bounds the entries kept for /trace.
const JournalSize = 512

// RuntimeOptions configures NewRuntime.
type RuntimeOptions struct {
	Config config.Config
	Logger *slog.Logger

	// Features limits the registered features by name; empty means all.
	Features []string

	// Cache overrides the cache selected by Config.Cache.
	Cache ports.Cache
}

// Runtime is an engine wired with the example features, demo providers, a provider
// cache and the observability hooks.
type Runtime struct {
	Engine    *ripple.Engine
	Registry  *registry.Registry
	Validator *validator.Validator
	Metrics   *observability.Metrics
	Journal   *observability.Journal
	Styles    *demo.Styles

	closers []func() error
}

// NewRuntime initializes a Runtime with standard CLI conventions.
func NewRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = CreateLogger(false, cfg.SlogLevel())
	}
	rt := &Runtime{}

	// 1. Provider cache
	cache := opts.Cache
	if cache == nil {
		c, closer, err := newCache(ctx, cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		cache = c
		if closer != nil {
			rt.closers = append(rt.closers, closer)
		}
	}

	// 2. Providers & features
	latency := demo.Latency(cfg.Demo.Latency)
	rt.Styles = &demo.Styles{Latency: latency}
	deps := features.Deps{
		Geoprocessing: demo.Geo{Latency: latency},
		Catalog: catalog.NewCachedProvider(
			demo.Catalog{Latency: latency, Layers: cfg.Demo.Capabilities, Records: cfg.Demo.Records},
			cache,
			logger,
		),
		Styles: rt.Styles,
	}
	rt.Registry = registry.NewRegistry()
	features.Register(rt.Registry, cfg.Features, deps)

	set, err := rt.Registry.Build(opts.Features...)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}

	// 3. Observability
	rt.Metrics, err = observability.NewMetrics(nil)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("metrics: %w", err), rt.Close())
	}
	rt.Journal = observability.NewJournal(JournalSize)
	hooks := observability.Combine(
		observability.LogHooks(logger),
		rt.Metrics.Hooks(),
		rt.Journal.Hooks(),
	)

	// 4. Engine
	rt.Engine, err = ripple.New(
		ripple.WithName("ripple"),
		ripple.WithLogger(logger),
		ripple.WithHandlers(set),
		ripple.WithReducers(features.Reducers()),
		ripple.WithState(InitialState(cfg)),
		ripple.WithLifecycleHooks(hooks),
		ripple.WithDecoder(rt.Registry.Decode),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("error initializing engine: %w", err), rt.Close())
	}

	// 5. External actions may use every declared payload type and every handler trigger
	types := rt.Registry.Types()
	for _, h := range rt.Engine.Handlers() {
		types = append(types, h.Types...)
	}
	rt.Validator = validator.New(types, rt.Registry.Decode)
	return rt, nil
}

// Close releases the cache connection.
func (rt *Runtime) Close() error {
	var errs []error
	for _, c := range rt.closers {
		errs = append(errs, c())
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// InitialState seeds the map with the configured demo layers.
func InitialState(cfg config.Config) domain.State {
	return domain.NewState(map[string]any{
		gis.StateLayers:  gis.LayerState{Layers: cfg.Demo.Layers},
		gis.StateMapInfo: gis.MapInfo{Enabled: true},
	})
}

func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (ports.Cache, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Debug("provider cache in memory", "ttl", cfg.TTL)
		return memory.NewCache(memory.WithTTL(cfg.TTL)), nil, nil
	}
	c := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		redis.WithTTL(cfg.TTL),
		redis.WithPrefix(cfg.Prefix),
	)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("redis cache at %s: %w", cfg.RedisAddr, err)
	}
	logger.Debug("provider cache in redis", "addr", cfg.RedisAddr, "prefix", cfg.Prefix, "ttl", cfg.TTL)
	return c, c.Close, nil
}
