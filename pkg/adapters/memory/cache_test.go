package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ripple/pkg/adapters/memory"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Contract(t *testing.T) {
	ports.RunCacheContract(t, memory.NewCache())
}

func TestMemoryCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := memory.NewCache(
		memory.WithTTL(time.Minute),
		memory.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "wms", []byte("caps")))
	got, err := cache.Get(ctx, "wms")
	require.NoError(t, err)
	assert.Equal(t, []byte("caps"), got)

	now = now.Add(time.Minute)
	_, err = cache.Get(ctx, "wms")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "expired entries are pruned")
}

func TestMemoryCache_Isolation(t *testing.T) {
	cache := memory.NewCache()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, cache.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'Y'
	again, _ := cache.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}
