package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCacheContract runs a suite of tests to verify that a Cache implementation
// adheres to the defined interface contract.
func RunCacheContract(t *testing.T, cache Cache) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405") + "-"

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "capabilities"
		payload := []byte(`{"layers":["roads","rivers"]}`)

		require.NoError(t, cache.Set(ctx, key, payload), "Set should not return error")

		got, err := cache.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, payload, got)
	})

	t.Run("Set Overwrites", func(t *testing.T) {
		key := prefix + "overwrite"
		require.NoError(t, cache.Set(ctx, key, []byte("v1")))
		require.NoError(t, cache.Set(ctx, key, []byte("v2")))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := cache.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "delete"
		require.NoError(t, cache.Set(ctx, key, []byte("x")))

		require.NoError(t, cache.Delete(ctx, key), "Delete should not return error")
		_, err := cache.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrCacheMiss, "Get after Delete should return ErrCacheMiss")

		assert.NoError(t, cache.Delete(ctx, key), "Deleting twice is not an error")
	})

	t.Run("Keys", func(t *testing.T) {
		k1, k2 := prefix+"k1", prefix+"k2"
		require.NoError(t, cache.Set(ctx, k1, []byte("1")))
		require.NoError(t, cache.Set(ctx, k2, []byte("2")))
		defer func() {
			_ = cache.Delete(ctx, k1)
			_ = cache.Delete(ctx, k2)
		}()

		keys, err := cache.Keys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
