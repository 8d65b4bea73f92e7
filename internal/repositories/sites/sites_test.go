package sites

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/dmitrijs2005/filepool/internal/migrations"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db, dbx.DialectSQLite))
	return db
}

func setupLevelDB(t *testing.T) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func backends(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite":  NewSQLRepository(setupDB(t), dbx.DialectSQLite),
		"leveldb": NewLevelDBRepository(setupLevelDB(t)),
	}
}

func TestRepository_UpsertGetList(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &models.Site{ID: "a", URL: "https://one.example", Token: "t1", CreatedAt: time.UnixMilli(1000).UTC()}
			second := &models.Site{ID: "b", URL: "https://two.example", Token: "t2", CreatedAt: time.UnixMilli(2000).UTC()}
			require.NoError(t, r.Upsert(ctx, second))
			require.NoError(t, r.Upsert(ctx, first))

			got, err := r.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, first, got)

			first.Token = "rotated"
			first.CreatedAt = time.UnixMilli(5000).UTC()
			require.NoError(t, r.Upsert(ctx, first))
			got, err = r.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "rotated", got.Token)
			assert.Equal(t, int64(1000), got.CreatedAt.UnixMilli(), "creation time is kept")

			all, err := r.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "a", all[0].ID)
			assert.Equal(t, "b", all[1].ID)
		})
	}
}

func TestRepository_GetMissingAndDelete(t *testing.T) {
	for name, r := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := r.Get(ctx, "nope")
			assert.ErrorIs(t, err, common.ErrorNotFound)

			require.NoError(t, r.Upsert(ctx, &models.Site{ID: "x", URL: "https://x.example"}))
			require.NoError(t, r.Delete(ctx, "x"))
			_, err = r.Get(ctx, "x")
			assert.ErrorIs(t, err, common.ErrorNotFound)
		})
	}
}
