package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/kvx"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/syndtr/goleveldb/leveldb"
)

// Key layout:
//
//	q  \0 <site> \0 <seq, 20 digits> -> gob(models.QueueEntry)
//	qi \0 <site> \0 <file>           -> seq
//	qs                               -> last assigned seq
const (
	entryPrefix = "q"
	indexPrefix = "qi"
	seqKey      = "qs"
)

// seqMu serializes sequence allocation for writers that are not inside a
// LevelDB transaction.
var seqMu sync.Mutex

type LevelDBRepository struct {
	kv kvx.KV
}

func NewLevelDBRepository(kv kvx.KV) *LevelDBRepository {
	return &LevelDBRepository{kv: kv}
}

func entryKey(siteID string, seq int64) []byte {
	return kvx.Key(entryPrefix, siteID, fmt.Sprintf("%020d", seq))
}

func (r *LevelDBRepository) seqOf(siteID, fileID string) (int64, bool, error) {
	b, err := r.kv.Get(kvx.Key(indexPrefix, siteID, fileID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int64(binary.BigEndian.Uint64(b)), true, nil
}

func (r *LevelDBRepository) Get(ctx context.Context, siteID, fileID string) (*models.QueueEntry, error) {
	seq, ok, err := r.seqOf(siteID, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry %s: %w", fileID, err)
	}
	if !ok {
		return nil, common.ErrorNotFound
	}

	var e models.QueueEntry
	found, err := kvx.GetGob(r.kv, entryKey(siteID, seq), &e)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry %s: %w", fileID, err)
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

func (r *LevelDBRepository) Upsert(ctx context.Context, e *models.QueueEntry) error {
	seqMu.Lock()
	defer seqMu.Unlock()

	seq, ok, err := r.seqOf(e.SiteID, e.FileID)
	if err != nil {
		return fmt.Errorf("failed to upsert queue entry: %w", err)
	}

	stored := *e
	if ok {
		var prev models.QueueEntry
		if _, err := kvx.GetGob(r.kv, entryKey(e.SiteID, seq), &prev); err != nil {
			return fmt.Errorf("failed to upsert queue entry: %w", err)
		}
		stored.AddedAt = prev.AddedAt
	} else {
		if seq, err = r.nextSeq(); err != nil {
			return fmt.Errorf("failed to allocate queue sequence: %w", err)
		}
		if stored.AddedAt.IsZero() {
			stored.AddedAt = time.Now().UTC()
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(seq))
		if err := r.kv.Put(kvx.Key(indexPrefix, e.SiteID, e.FileID), buf[:], nil); err != nil {
			return fmt.Errorf("failed to upsert queue entry: %w", err)
		}
	}
	stored.Seq = seq

	if err := kvx.PutGob(r.kv, entryKey(e.SiteID, seq), &stored); err != nil {
		return fmt.Errorf("failed to upsert queue entry: %w", err)
	}
	return nil
}

func (r *LevelDBRepository) nextSeq() (int64, error) {
	var last int64
	b, err := r.kv.Get([]byte(seqKey), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		last = int64(binary.BigEndian.Uint64(b))
	}

	next := last + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(next))
	if err := r.kv.Put([]byte(seqKey), buf[:], nil); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *LevelDBRepository) Next(ctx context.Context, siteID string) (*models.QueueEntry, error) {
	var e *models.QueueEntry
	errStop := errors.New("stop")

	err := kvx.Scan(r.kv, kvx.Prefix(entryPrefix, siteID), func(_, value []byte) error {
		var cur models.QueueEntry
		if err := kvx.DecodeGob(value, &cur); err != nil {
			return err
		}
		e = &cur
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("failed to get next queue entry: %w", err)
	}
	if e == nil {
		return nil, common.ErrorNotFound
	}
	return e, nil
}

func (r *LevelDBRepository) Delete(ctx context.Context, siteID, fileID string) error {
	seq, ok, err := r.seqOf(siteID, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", fileID, err)
	}
	if !ok {
		return nil
	}
	if err := r.kv.Delete(entryKey(siteID, seq), nil); err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", fileID, err)
	}
	if err := r.kv.Delete(kvx.Key(indexPrefix, siteID, fileID), nil); err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", fileID, err)
	}
	return nil
}

func (r *LevelDBRepository) ListBySite(ctx context.Context, siteID string) ([]*models.QueueEntry, error) {
	result := make([]*models.QueueEntry, 0)
	err := kvx.Scan(r.kv, kvx.Prefix(entryPrefix, siteID), func(_, value []byte) error {
		var e models.QueueEntry
		if err := kvx.DecodeGob(value, &e); err != nil {
			return err
		}
		result = append(result, &e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return result, nil
}

func (r *LevelDBRepository) Sites(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	result := make([]string, 0)
	err := kvx.Scan(r.kv, kvx.Prefix(entryPrefix), func(key, _ []byte) error {
		parts := kvx.Split(key)
		if len(parts) < 3 {
			return nil
		}
		if _, ok := seen[parts[1]]; !ok {
			seen[parts[1]] = struct{}{}
			result = append(result, parts[1])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queued sites: %w", err)
	}
	return result, nil
}

func (r *LevelDBRepository) DeleteBySite(ctx context.Context, siteID string) error {
	if err := kvx.DeletePrefix(r.kv, kvx.Prefix(entryPrefix, siteID)); err != nil {
		return fmt.Errorf("failed to delete queue of site %s: %w", siteID, err)
	}
	if err := kvx.DeletePrefix(r.kv, kvx.Prefix(indexPrefix, siteID)); err != nil {
		return fmt.Errorf("failed to delete queue of site %s: %w", siteID, err)
	}
	return nil
}
