package basket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBasket(t *testing.T) {
	ctx := context.Background()
	bk := NewMemoryStore().ForSession("42")

	require.NoError(t, bk.Add(ctx, 1))
	require.NoError(t, bk.Add(ctx, 2))
	require.NoError(t, bk.Add(ctx, 3))
	assert.ErrorIs(t, bk.Add(ctx, 2), ErrAlreadyInBasket)

	ids, err := bk.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids, "insertion order is kept")

	require.NoError(t, bk.Remove(ctx, 2))
	require.NoError(t, bk.Remove(ctx, 99), "removing an absent item is a no-op")
	ids, err = bk.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids)

	require.NoError(t, bk.Clear(ctx))
	ids, err = bk.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Cleared baskets accept the item again.
	require.NoError(t, bk.Add(ctx, 1))
}

func TestMemoryStoreSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := store.ForSession("a")
	b := store.ForSession("b")
	require.NoError(t, a.Add(ctx, 1))

	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// The same session id resolves to the same basket.
	again := store.ForSession("a")
	ids, err = again.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)
}
