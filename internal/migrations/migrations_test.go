package migrations

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestUp_SQLiteCreatesTables(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Up(context.Background(), db, dbx.DialectSQLite))

	for _, table := range []string{"sites", "files", "queue", "links", "metadata"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	require.NoError(t, Up(context.Background(), db, dbx.DialectSQLite), "second run is a no-op")
}

func TestUp_PostgresUsesPostgresDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Up(context.Background(), db, dbx.DialectPostgres))
	assert.Equal(t, "postgres", gotDir)
}

func TestUp_WrapsError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = Up(context.Background(), db, dbx.DialectSQLite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run migrations")
}

func TestEmbeddedFilesPresent(t *testing.T) {
	for _, dir := range []string{"sqlite", "postgres"} {
		entries, err := Migrations.ReadDir(dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)
	}
}
