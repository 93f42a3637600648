package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

func newMigrationProvider(dialect goose.Dialect, dir string, db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations/"+dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, db, fsys)
}

func migrateUp(ctx context.Context, dialect goose.Dialect, dir string, db *sql.DB) error {
	provider, err := newMigrationProvider(dialect, dir, db)
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

func migrationStatus(ctx context.Context, dialect goose.Dialect, dir string, db *sql.DB) ([]*goose.MigrationStatus, error) {
	provider, err := newMigrationProvider(dialect, dir, db)
	if err != nil {
		return nil, fmt.Errorf("store: migrations: %w", err)
	}
	return provider.Status(ctx)
}
