// Package store persists the catalog in SQLite (the default, a single file)
// or PostgreSQL.
package store

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/catalog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the single storage abstraction shared by every service.
type Store interface {
	catalog.Repository
	analytics.Source

	Initialize(ctx context.Context) error
	MigrationStatus(ctx context.Context) ([]*goose.MigrationStatus, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and locates the backend.
type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open connects to the configured backend and initializes its schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, opts.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)
