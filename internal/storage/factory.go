package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/config"
)

func NewFileRepositories(sessionsFile, eventsFile, usersFile string, logger internal.Logger) (*Repositories, error) {
	if err := ensureParentDirs(sessionsFile, eventsFile, usersFile); err != nil {
		return nil, err
	}
	storage, err := NewFileStorage(sessionsFile, eventsFile, usersFile, logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{Sessions: storage, Events: storage, Maintenance: storage, closer: storage.Close}, nil
}

func NewSQLiteRepositories(path string, logger internal.Logger) (*Repositories, error) {
	if err := ensureParentDirs(path); err != nil {
		return nil, err
	}
	storage, err := NewSQLiteStorage(path, logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{Sessions: storage, Events: storage, Maintenance: storage, closer: storage.Close}, nil
}

func NewPostgresRepositories(ctx context.Context, dsn string, logger internal.Logger) (*Repositories, error) {
	storage, err := NewPostgresStorage(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{Sessions: storage, Events: storage, Maintenance: storage, closer: storage.Close}, nil
}

// Open builds the backend selected by cfg.DBType.
func Open(ctx context.Context, cfg *config.Config, logger internal.Logger) (*Repositories, error) {
	switch cfg.DBType {
	case config.BackendFile:
		return NewFileRepositories(cfg.FileSessions, cfg.FileEvents, cfg.FileUsers, logger)
	case config.BackendSQLite:
		return NewSQLiteRepositories(cfg.SQLitePath, logger)
	case config.BackendPostgres:
		return NewPostgresRepositories(ctx, cfg.DBDSN, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.DBType)
	}
}

// Migrate applies pending migrations for the configured SQL backend and
// verifies the schema is current. The file backend has no schema.
func Migrate(ctx context.Context, cfg *config.Config, logger internal.Logger) error {
	switch cfg.DBType {
	case config.BackendSQLite:
		if err := ensureParentDirs(cfg.SQLitePath); err != nil {
			return err
		}
		s, err := NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.MigrationStatus()
	case config.BackendPostgres:
		p, err := NewPostgresStorage(ctx, cfg.DBDSN, logger)
		if err != nil {
			return err
		}
		defer p.Close()
		return p.MigrationStatus()
	default:
		return fmt.Errorf("storage: %s backend has no schema to migrate", cfg.DBType)
	}
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("storage: create data directory: %w", err)
		}
	}
	return nil
}
