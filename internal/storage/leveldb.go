package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/dmitrijs2005/filepool/internal/repositories/files"
	"github.com/dmitrijs2005/filepool/internal/repositories/links"
	"github.com/dmitrijs2005/filepool/internal/repositories/metadata"
	"github.com/dmitrijs2005/filepool/internal/repositories/queue"
	"github.com/dmitrijs2005/filepool/internal/repositories/sites"
	"github.com/syndtr/goleveldb/leveldb"
)

type LevelDBStore struct {
	db   *leveldb.DB
	kv   kvx.KV
	inTx bool
}

// NewLevelDBStore wraps an open database; useful with storage.NewMemStorage
// in tests.
func NewLevelDBStore(db *leveldb.DB) *LevelDBStore {
	return &LevelDBStore{db: db, kv: db}
}

// OpenLevelDB opens (creating if needed) a LevelDB directory.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", path, err)
	}
	return NewLevelDBStore(db), nil
}

func (s *LevelDBStore) Files() files.Repository       { return files.NewLevelDBRepository(s.kv) }
func (s *LevelDBStore) Queue() queue.Repository       { return queue.NewLevelDBRepository(s.kv) }
func (s *LevelDBStore) Links() links.Repository       { return links.NewLevelDBRepository(s.kv) }
func (s *LevelDBStore) Sites() sites.Repository       { return sites.NewLevelDBRepository(s.kv) }
func (s *LevelDBStore) Metadata() metadata.Repository { return metadata.NewLevelDBRepository(s.kv) }

func (s *LevelDBStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return kvx.WithTx(ctx, s.db, func(ctx context.Context, tx kvx.KV) error {
		return fn(ctx, &LevelDBStore{db: s.db, kv: tx, inTx: true})
	})
}

func (s *LevelDBStore) Ping(ctx context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
