package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/dmitrijs2005/filepool/internal/migrations"
	"github.com/dmitrijs2005/filepool/internal/repositories/files"
	"github.com/dmitrijs2005/filepool/internal/repositories/links"
	"github.com/dmitrijs2005/filepool/internal/repositories/metadata"
	"github.com/dmitrijs2005/filepool/internal/repositories/queue"
	"github.com/dmitrijs2005/filepool/internal/repositories/sites"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLStore serves both SQLite and PostgreSQL; repositories rebind their
// placeholders for the dialect.
type SQLStore struct {
	db      *sql.DB
	conn    dbx.DBTX
	dialect dbx.Dialect
	inTx    bool
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, conn: db, dialect: dialect}
}

// OpenSQLite opens (creating if needed) a SQLite database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if err := migrations.Up(ctx, db, dbx.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, dbx.DialectSQLite), nil
}

// OpenPostgres connects through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := migrations.Up(ctx, db, dbx.DialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, dbx.DialectPostgres), nil
}

func (s *SQLStore) Files() files.Repository       { return files.NewSQLRepository(s.conn, s.dialect) }
func (s *SQLStore) Queue() queue.Repository       { return queue.NewSQLRepository(s.conn, s.dialect) }
func (s *SQLStore) Links() links.Repository       { return links.NewSQLRepository(s.conn, s.dialect) }
func (s *SQLStore) Sites() sites.Repository       { return sites.NewSQLRepository(s.conn, s.dialect) }
func (s *SQLStore) Metadata() metadata.Repository { return metadata.NewSQLRepository(s.conn, s.dialect) }

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &SQLStore{db: s.db, conn: tx, dialect: s.dialect, inTx: true})
	})
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
