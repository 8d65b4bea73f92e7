package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/syndtr/goleveldb/leveldb"
)

const prefix = "m"

type LevelDBRepository struct {
	kv kvx.KV
}

func NewLevelDBRepository(kv kvx.KV) *LevelDBRepository {
	return &LevelDBRepository{kv: kv}
}

func (r *LevelDBRepository) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.kv.Get(kvx.Key(prefix, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (r *LevelDBRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.kv.Put(kvx.Key(prefix, key), value, nil); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *LevelDBRepository) Delete(ctx context.Context, key string) error {
	if err := r.kv.Delete(kvx.Key(prefix, key), nil); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *LevelDBRepository) List(ctx context.Context) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := kvx.Scan(r.kv, kvx.Prefix(prefix), func(key, value []byte) error {
		parts := kvx.Split(key)
		result[parts[len(parts)-1]] = append([]byte{}, value...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	return result, nil
}

func (r *LevelDBRepository) Clear(ctx context.Context) error {
	if err := kvx.DeletePrefix(r.kv, kvx.Prefix(prefix)); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}
