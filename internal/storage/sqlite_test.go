package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
	"github.com/yourname/focustracker/internal/storage/storagetest"
)

func TestSQLiteStorageConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) *storage.Repositories {
		repos, err := storage.NewSQLiteRepositories(filepath.Join(t.TempDir(), "focus.db"), internal.NopLogger())
		require.NoError(t, err)
		t.Cleanup(func() { repos.Close() })
		return repos
	})
}

func TestSQLiteMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.db")
	s, err := storage.NewSQLiteStorage(path, internal.NopLogger())
	require.NoError(t, err)

	require.NoError(t, s.MigrationStatus())

	// Opening again re-runs migrations as a no-op on a separate handle.
	again, err := storage.NewSQLiteStorage(path, internal.NopLogger())
	require.NoError(t, err)
	require.NoError(t, again.Close())

	// Migrations never borrow the storage handle, so it stays usable.
	require.NoError(t, s.DB().Ping())
	_, err = s.DB().Exec(`INSERT INTO events (id, user_id, session_id, type, meta, timestamp, severity, resolved, created_at, updated_at)
		VALUES ('e1', 'u1', 's1', 'NOPE', '{}', 0, 'low', 0, 0, 0)`)
	assert.Error(t, err, "type CHECK constraint")
	require.NoError(t, s.Close())
}
