package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
	"github.com/yourname/focustracker/internal/storage/storagetest"
)

func postgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	return dsn
}

// Runs only against a disposable database: every subtest truncates all tables.
func TestPostgresStorageConformance(t *testing.T) {
	dsn := postgresDSN(t)
	storagetest.Run(t, func(t *testing.T) *storage.Repositories {
		ctx := context.Background()
		s, err := storage.NewPostgresStorage(ctx, dsn, internal.NopLogger())
		require.NoError(t, err)
		require.NoError(t, s.Truncate(ctx))
		t.Cleanup(func() { s.Close() })
		return &storage.Repositories{Sessions: s, Events: s, Maintenance: s}
	})
}

func TestPostgresCloseAfterMigrate(t *testing.T) {
	dsn := postgresDSN(t)
	ctx := context.Background()
	s, err := storage.NewPostgresStorage(ctx, dsn, internal.NopLogger())
	require.NoError(t, err)
	require.NoError(t, s.MigrationStatus())

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return: a pooled connection was never released")
	}
}
