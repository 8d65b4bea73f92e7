// Package migrations embeds the goose schema migrations for every SQL
// dialect the store supports.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// test seam
var gooseUpContext = goose.UpContext

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Dir returns the embedded directory holding the dialect's migrations.
func Dir(d dbx.Dialect) string {
	if d == dbx.DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Up applies all pending migrations for the dialect.
func Up(ctx context.Context, db *sql.DB, d dbx.Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, Dir(d)); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
