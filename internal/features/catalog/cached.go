package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aretw0/ripple/internal/logging"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/ports"
)

// CachedProvider serves capabilities from a cache, asking the wrapped provider on a miss.
// Searches always go to the wrapped provider.
type CachedProvider struct {
	next   Provider
	cache  ports.Cache
	logger *slog.Logger
}

// NewCachedProvider decorates next with cache. A nil logger discards cache errors.
func NewCachedProvider(next Provider, cache ports.Cache, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedProvider{next: next, cache: cache, logger: logger}
}

// Capabilities implements Provider.
func (p *CachedProvider) Capabilities(ctx context.Context, layer LayerRef) (Capabilities, error) {
	key := "capabilities:" + layer.URL + "#" + layer.Name

	raw, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		var caps Capabilities
		if err := json.Unmarshal(raw, &caps); err == nil {
			return caps, nil
		}
		p.logger.Warn("dropping undecodable cache entry", "key", key)
		_ = p.cache.Delete(ctx, key)
	case !errors.Is(err, domain.ErrCacheMiss):
		p.logger.Warn("capabilities cache unavailable", "key", key, "err", err)
	}

	caps, err := p.next.Capabilities(ctx, layer)
	if err != nil {
		return Capabilities{}, err
	}
	if raw, err := json.Marshal(caps); err == nil {
		if err := p.cache.Set(ctx, key, raw); err != nil {
			p.logger.Warn("failed to cache capabilities", "key", key, "err", err)
		}
	}
	return caps, nil
}

// Search implements Provider.
func (p *CachedProvider) Search(ctx context.Context, url, text string) ([]Record, error) {
	return p.next.Search(ctx, url, text)
}
