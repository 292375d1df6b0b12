package session

import (
	"context"
	"testing"

	"github.com/livetemplate/walkthrough"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

var contractWidget = &walkthrough.Widget{
	ID:   "count",
	Spec: walkthrough.WidgetSpec{Kind: walkthrough.WidgetNumber, Min: ptr(0), Max: ptr(10)},
}

// runStoreContract checks the behaviour every Store must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		state := walkthrough.NewWidgetState()
		_, err := state.Set(contractWidget, 15)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, "s1", state))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		v, ok := loaded.Lookup("count")
		require.True(t, ok)
		assert.Equal(t, 10.0, v)
	})

	t.Run("Load copy is independent", func(t *testing.T) {
		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		loaded.Reset()

		again, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, again.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s2", walkthrough.NewWidgetState()))
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "s1")
		assert.Contains(t, ids, "s2")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "s1"))
		_, err := store.Load(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, "s1")
	})
}
