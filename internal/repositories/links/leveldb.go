package links

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/dmitrijs2005/filepool/internal/models"
)

// Key layout, both with empty values:
//
//	l  \0 <site> \0 <file> \0 <component> \0 <componentID>
//	lc \0 <site> \0 <component> \0 <componentID> \0 <file>
const (
	filePrefix      = "l"
	componentPrefix = "lc"
)

type LevelDBRepository struct {
	kv kvx.KV
}

func NewLevelDBRepository(kv kvx.KV) *LevelDBRepository {
	return &LevelDBRepository{kv: kv}
}

func (r *LevelDBRepository) Add(ctx context.Context, siteID, fileID string, links []models.Link) error {
	for _, l := range links {
		if l.Component == "" {
			continue
		}
		if err := r.kv.Put(kvx.Key(filePrefix, siteID, fileID, l.Component, l.ComponentID), nil, nil); err != nil {
			return fmt.Errorf("failed to add link %s/%s: %w", l.Component, l.ComponentID, err)
		}
		if err := r.kv.Put(kvx.Key(componentPrefix, siteID, l.Component, l.ComponentID, fileID), nil, nil); err != nil {
			return fmt.Errorf("failed to add link %s/%s: %w", l.Component, l.ComponentID, err)
		}
	}
	return nil
}

func (r *LevelDBRepository) ByFile(ctx context.Context, siteID, fileID string) ([]models.Link, error) {
	result := make([]models.Link, 0)
	err := kvx.Scan(r.kv, kvx.Prefix(filePrefix, siteID, fileID), func(key, _ []byte) error {
		parts := kvx.Split(key)
		if len(parts) != 5 {
			return nil
		}
		result = append(result, models.Link{Component: parts[3], ComponentID: parts[4]})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list links of %s: %w", fileID, err)
	}
	return result, nil
}

func (r *LevelDBRepository) FileIDsByComponent(ctx context.Context, siteID, component, componentID string) ([]string, error) {
	prefix := kvx.Prefix(componentPrefix, siteID, component)
	if componentID != "" {
		prefix = kvx.Prefix(componentPrefix, siteID, component, componentID)
	}

	seen := make(map[string]struct{})
	result := make([]string, 0)
	err := kvx.Scan(r.kv, prefix, func(key, _ []byte) error {
		parts := kvx.Split(key)
		if len(parts) != 5 {
			return nil
		}
		id := parts[4]
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query links of %s: %w", component, err)
	}
	return result, nil
}

func (r *LevelDBRepository) DeleteByFile(ctx context.Context, siteID, fileID string) error {
	links, err := r.ByFile(ctx, siteID, fileID)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := r.kv.Delete(kvx.Key(componentPrefix, siteID, l.Component, l.ComponentID, fileID), nil); err != nil {
			return fmt.Errorf("failed to delete links of %s: %w", fileID, err)
		}
	}
	if err := kvx.DeletePrefix(r.kv, kvx.Prefix(filePrefix, siteID, fileID)); err != nil {
		return fmt.Errorf("failed to delete links of %s: %w", fileID, err)
	}
	return nil
}

func (r *LevelDBRepository) DeleteBySite(ctx context.Context, siteID string) error {
	for _, p := range []string{filePrefix, componentPrefix} {
		if err := kvx.DeletePrefix(r.kv, kvx.Prefix(p, siteID)); err != nil {
			return fmt.Errorf("failed to delete links of site %s: %w", siteID, err)
		}
	}
	return nil
}
