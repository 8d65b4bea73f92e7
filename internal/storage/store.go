// Package storage groups the per-concern repositories behind one Store so
// that callers can run several writes in a single transaction regardless
// of the backend (SQLite, PostgreSQL or LevelDB).
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/repositories/files"
	"github.com/dmitrijs2005/filepool/internal/repositories/links"
	"github.com/dmitrijs2005/filepool/internal/repositories/metadata"
	"github.com/dmitrijs2005/filepool/internal/repositories/queue"
	"github.com/dmitrijs2005/filepool/internal/repositories/sites"
)

// Store is the persistent source of truth for files, queue entries, links,
// sites and scheduler metadata.
type Store interface {
	Files() files.Repository
	Queue() queue.Repository
	Links() links.Repository
	Sites() sites.Repository
	Metadata() metadata.Repository

	// WithinTx runs fn inside a transaction; nested calls join the outer
	// one. Only the repositories of tx may be used inside fn: touching the
	// outer store can deadlock on single-connection backends.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLevelDB  = "leveldb"
)

// Options selects and configures the backend.
type Options struct {
	Driver string
	// DSN is a file path for sqlite and leveldb, a connection string for
	// postgres.
	DSN string
}

// Open opens the configured backend and brings its schema up to date.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return OpenSQLite(ctx, opts.DSN)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN)
	case DriverLevelDB:
		return OpenLevelDB(opts.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
