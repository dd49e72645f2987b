package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"astrocore/internal/infra/persistence/storetest"
	"astrocore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.PersistentStore {
		store, err := NewStore(filepath.Join(t.TempDir(), "contract.db"), nil)
		require.NoError(t, err)
		return store
	})
}

func TestNewStoreCreatesNestedDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "astro.db")
	store, err := NewStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
	require.NoError(t, store.Ping(context.Background()))
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := NewStore(path, nil)
	require.NoError(t, err)
	sc, p := storetest.Seed(t, first)
	require.NoError(t, first.Close())

	// migrations are recorded, so reopening is a no-op for the schema
	second, err := NewStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	require.NoError(t, second.View(context.Background(), func(v domain.TransactionView) error {
		got, err := v.FindScientist(sc.ID)
		require.NoError(t, err)
		assert.Equal(t, sc, got)
		planets, err := v.ListPlanets()
		require.NoError(t, err)
		assert.Equal(t, []domain.Planet{p}, planets)
		return nil
	}))

	var applied int
	require.NoError(t, second.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestForeignKeysEnabled(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "fk.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var enabled int
	require.NoError(t, store.DB().QueryRow(`PRAGMA foreign_keys`).Scan(&enabled))
	assert.Equal(t, 1, enabled)
}
