package sites

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/dmitrijs2005/filepool/internal/models"
)

const prefix = "s"

type LevelDBRepository struct {
	kv kvx.KV
}

func NewLevelDBRepository(kv kvx.KV) *LevelDBRepository {
	return &LevelDBRepository{kv: kv}
}

func (r *LevelDBRepository) Get(ctx context.Context, id string) (*models.Site, error) {
	var s models.Site
	found, err := kvx.GetGob(r.kv, kvx.Key(prefix, id), &s)
	if err != nil {
		return nil, fmt.Errorf("failed to get site %s: %w", id, err)
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *LevelDBRepository) Upsert(ctx context.Context, s *models.Site) error {
	var existing models.Site
	found, err := kvx.GetGob(r.kv, kvx.Key(prefix, s.ID), &existing)
	if err != nil {
		return fmt.Errorf("failed to upsert site %s: %w", s.ID, err)
	}
	switch {
	case found:
		s.CreatedAt = existing.CreatedAt
	case s.CreatedAt.IsZero():
		s.CreatedAt = time.Now().UTC()
	}
	s.CreatedAt = time.UnixMilli(s.CreatedAt.UnixMilli()).UTC()

	if err := kvx.PutGob(r.kv, kvx.Key(prefix, s.ID), s); err != nil {
		return fmt.Errorf("failed to upsert site %s: %w", s.ID, err)
	}
	return nil
}

func (r *LevelDBRepository) List(ctx context.Context) ([]*models.Site, error) {
	result := make([]*models.Site, 0)
	err := kvx.Scan(r.kv, kvx.Prefix(prefix), func(_, value []byte) error {
		var s models.Site
		if err := kvx.DecodeGob(value, &s); err != nil {
			return err
		}
		result = append(result, &s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *LevelDBRepository) Delete(ctx context.Context, id string) error {
	if err := r.kv.Delete(kvx.Key(prefix, id), nil); err != nil {
		return fmt.Errorf("failed to delete site %s: %w", id, err)
	}
	return nil
}
