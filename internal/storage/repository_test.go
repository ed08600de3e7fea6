package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "pocketbook.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepositoryGetSetClear(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, ok, err := repo.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "transactions", []byte(`[{"id":"a"}]`)))
	require.NoError(t, repo.Set(ctx, "transactions", []byte(`[{"id":"b"}]`)))
	require.NoError(t, repo.Set(ctx, "categories", []byte(`[]`)))

	got, ok, err := repo.Get(ctx, "transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"b"}]`, string(got))

	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "transactions"}, keys)

	require.NoError(t, repo.Clear(ctx))
	keys, err = repo.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLiteRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)
	require.NoError(t, repo.Set(ctx, "categories", []byte(`[{"id":"9"}]`)))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "categories")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"9"}]`, string(got))
}

func TestSQLiteRepositoryEmptyValue(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Set(ctx, "k", nil))
	got, ok, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	v, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	v, err = RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}
