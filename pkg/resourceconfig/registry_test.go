package resourceconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

func TestRegistry_GetCachesAfterFirstLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newConfig("cached")))

	reg := NewRegistry(store)

	got, err := reg.Get(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, "cached", got.ID)

	reg.mu.RLock()
	_, cached := reg.cache["cached"]
	reg.mu.RUnlock()
	assert.True(t, cached)
}

func TestRegistry_UpdateInvalidatesCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rc := newConfig("inv")
	require.NoError(t, store.Create(ctx, rc))

	reg := NewRegistry(store)
	_, err := reg.Get(ctx, "inv")
	require.NoError(t, err)

	rc.NbCPUs = 16
	require.NoError(t, reg.Update(ctx, rc))

	got, err := reg.Get(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, 16, got.NbCPUs)
}

func TestRegistry_DeleteInvalidatesCacheAndPropagates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newConfig("gone")))

	reg := NewRegistry(store)
	_, err := reg.Get(ctx, "gone")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, "gone"))

	_, err = reg.Get(ctx, "gone")
	require.Error(t, err)
	assert.True(t, rrberrors.IsNotFound(err))
}

func TestRegistry_GetNotFoundNotCached(t *testing.T) {
	store := newTestStore(t)
	reg := NewRegistry(store)

	_, err := reg.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, rrberrors.IsNotFound(err))
}
