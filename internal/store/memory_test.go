package store

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redadsync/redadsync/internal/models"
)

func TestMemoryStore_BundleOperations(t *testing.T) {
	store := NewMemoryStore()

	t.Run("Save and Get Bundle", func(t *testing.T) {
		require.NoError(t, store.SaveBundle(bundle("1", "a")))

		got, ok, err := store.GetBundle("1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "a", got.AccessToken)
	})

	t.Run("Get Non-existent Bundle", func(t *testing.T) {
		_, ok, err := store.GetBundle("missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Returned bundle is a copy", func(t *testing.T) {
		got, _, _ := store.GetBundle("1")
		got.AccessToken = "mutated"

		again, _, _ := store.GetBundle("1")
		assert.Equal(t, "a", again.AccessToken)
	})

	t.Run("Delete Bundle", func(t *testing.T) {
		ok, err := store.DeleteBundle("1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.DeleteBundle("1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalid bundle rejected", func(t *testing.T) {
		assert.Error(t, store.SaveBundle(models.TokenBundle{}))
	})
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SaveBundle(bundle("1", "a")))

	boom := stderrors.New("disk full")
	store.FailWrites(boom)

	err := store.SaveBundle(bundle("1", "b"))
	assert.ErrorIs(t, err, boom)

	got, _, _ := store.GetBundle("1")
	assert.Equal(t, "a", got.AccessToken)

	store.FailWrites(nil)
	require.NoError(t, store.SaveBundle(bundle("1", "b")))
}

func TestMemoryStore_BindingOperations(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.SaveBinding(models.TableBinding{AccountID: "2", NameRemark: "b", TableID: "tbl2"}))
	require.NoError(t, store.SaveBinding(models.TableBinding{AccountID: "1", NameRemark: "a", TableID: "tbl1"}))

	list, err := store.ListBindings()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].AccountID)

	require.NoError(t, store.ClearTableID("1"))
	got, ok, err := store.GetBinding("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Resolved())
	assert.Equal(t, "a", got.NameRemark)

	assert.NoError(t, store.ClearTableID("missing"))
}

func bundle(id, access string) models.TokenBundle {
	return models.TokenBundle{
		AdvertiserID:     id,
		AdvertiserName:   "name-" + id,
		AccessToken:      access,
		RefreshToken:     "r-" + access,
		AccessExpiresAt:  1000,
		RefreshExpiresAt: 2000,
	}
}
