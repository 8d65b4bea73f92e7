package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/dmitrijs2005/filepool/internal/models"
)

// Key layout: f \0 <site> \0 <file> -> gob(models.FileEntry)
const keyPrefix = "f"

type LevelDBRepository struct {
	kv kvx.KV
}

func NewLevelDBRepository(kv kvx.KV) *LevelDBRepository {
	return &LevelDBRepository{kv: kv}
}

func (r *LevelDBRepository) Get(ctx context.Context, siteID, fileID string) (*models.FileEntry, error) {
	var e models.FileEntry
	found, err := kvx.GetGob(r.kv, kvx.Key(keyPrefix, siteID, fileID), &e)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

func (r *LevelDBRepository) Upsert(ctx context.Context, e *models.FileEntry) error {
	if err := kvx.PutGob(r.kv, kvx.Key(keyPrefix, e.SiteID, e.FileID), e); err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

func (r *LevelDBRepository) Delete(ctx context.Context, siteID, fileID string) error {
	if err := r.kv.Delete(kvx.Key(keyPrefix, siteID, fileID), nil); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

func (r *LevelDBRepository) ListBySite(ctx context.Context, siteID string) ([]*models.FileEntry, error) {
	return r.list(siteID, func(*models.FileEntry) bool { return true })
}

func (r *LevelDBRepository) ListStale(ctx context.Context, siteID string) ([]*models.FileEntry, error) {
	return r.list(siteID, func(e *models.FileEntry) bool { return e.Stale })
}

func (r *LevelDBRepository) list(siteID string, keep func(*models.FileEntry) bool) ([]*models.FileEntry, error) {
	result := make([]*models.FileEntry, 0)
	err := kvx.Scan(r.kv, kvx.Prefix(keyPrefix, siteID), func(_, value []byte) error {
		var e models.FileEntry
		if err := kvx.DecodeGob(value, &e); err != nil {
			return err
		}
		if keep(&e) {
			result = append(result, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return result, nil
}

func (r *LevelDBRepository) SetStale(ctx context.Context, siteID, fileID string) error {
	e, err := r.Get(ctx, siteID, fileID)
	if err != nil {
		return err
	}
	e.Stale = true
	return r.Upsert(ctx, e)
}

func (r *LevelDBRepository) SetStaleAll(ctx context.Context, siteID string) (int, error) {
	entries, err := r.ListBySite(ctx, siteID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Stale {
			continue
		}
		e.Stale = true
		if err := r.Upsert(ctx, e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *LevelDBRepository) DeleteBySite(ctx context.Context, siteID string) error {
	if err := kvx.DeletePrefix(r.kv, kvx.Prefix(keyPrefix, siteID)); err != nil {
		return fmt.Errorf("failed to delete files of site %s: %w", siteID, err)
	}
	return nil
}
