package filepool

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/events"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/dmitrijs2005/filepool/internal/storage"
)

// IsFileOutdated reports whether entry fails the requested freshness. A
// requested revision is never satisfied by an entry without one.
func IsFileOutdated(entry *models.FileEntry, revision, timeModified *int64) bool {
	if entry.Stale {
		return true
	}
	if revision != nil && (entry.Revision == nil || *entry.Revision < *revision) {
		return true
	}
	if timeModified != nil && entry.TimeModified < *timeModified {
		return true
	}
	return false
}

// GetFileStateByURL reports the state of the file behind url without
// changing anything. When revision is nil it is taken from the URL.
func (p *Pool) GetFileStateByURL(ctx context.Context, siteID, url string, revision, timeModified *int64) (models.FileState, error) {
	_, fileID, urlRevision, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return models.StateNotDownloaded, err
	}
	if revision == nil {
		revision = urlRevision
	}

	_, err = p.store.Queue().Get(ctx, siteID, fileID)
	switch {
	case err == nil:
		return models.StateDownloading, nil
	case !errors.Is(err, common.ErrorNotFound):
		return models.StateNotDownloaded, storageErr(err)
	}

	entry, err := p.store.Files().Get(ctx, siteID, fileID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return models.StateNotDownloaded, nil
	case err != nil:
		return models.StateNotDownloaded, storageErr(err)
	}

	if IsFileOutdated(entry, revision, timeModified) {
		return models.StateOutdated, nil
	}
	return models.StateDownloaded, nil
}

// AddFileToPool records a downloaded file.
func (p *Pool) AddFileToPool(ctx context.Context, siteID, fileID string, entry *models.FileEntry) error {
	entry.SiteID = siteID
	entry.FileID = fileID
	return storageErr(p.store.Files().Upsert(ctx, entry))
}

// HasFileInPool returns the file entry or common.ErrorNotFound.
func (p *Pool) HasFileInPool(ctx context.Context, siteID, fileID string) (*models.FileEntry, error) {
	e, err := p.store.Files().Get(ctx, siteID, fileID)
	return e, storageErr(err)
}

// InvalidateFileByURL marks the file stale. common.ErrorNotFound when the
// file is not in the pool.
func (p *Pool) InvalidateFileByURL(ctx context.Context, siteID, url string) error {
	fixed, fileID, _, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return err
	}
	if err := p.store.Files().SetStale(ctx, siteID, fileID); err != nil {
		return storageErr(err)
	}

	p.metrics.Invalidated(1)
	p.publish(ctx, events.Event{Type: events.FileInvalidated, SiteID: siteID, FileID: fileID, URL: fixed})
	return nil
}

// InvalidateFilesByComponent marks stale every file linked to the
// component. An empty componentID matches every instance.
func (p *Pool) InvalidateFilesByComponent(ctx context.Context, siteID, component, componentID string) error {
	var invalidated []string
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		invalidated = invalidated[:0]
		ids, err := tx.Links().FileIDsByComponent(ctx, siteID, component, componentID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			err := tx.Files().SetStale(ctx, siteID, id)
			if errors.Is(err, common.ErrorNotFound) {
				// Linked but still queued.
				continue
			}
			if err != nil {
				return err
			}
			invalidated = append(invalidated, id)
		}
		return nil
	})
	if err != nil {
		return storageErr(err)
	}

	p.metrics.Invalidated(len(invalidated))
	for _, id := range invalidated {
		p.publish(ctx, events.Event{Type: events.FileInvalidated, SiteID: siteID, FileID: id})
	}
	return nil
}

// InvalidateAllFiles marks every file of the site stale.
func (p *Pool) InvalidateAllFiles(ctx context.Context, siteID string) error {
	n, err := p.store.Files().SetStaleAll(ctx, siteID)
	if err != nil {
		return storageErr(err)
	}

	p.metrics.Invalidated(n)
	p.publish(ctx, events.Event{Type: events.FileInvalidated, SiteID: siteID})
	return nil
}

// RemoveFileByID deletes the file entry with its links and then its
// bytes. Removing an unknown file is a no-op.
func (p *Pool) RemoveFileByID(ctx context.Context, siteID, fileID string) error {
	var entry *models.FileEntry
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		e, err := tx.Files().Get(ctx, siteID, fileID)
		switch {
		case err == nil:
			entry = e
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
		if err := tx.Files().Delete(ctx, siteID, fileID); err != nil {
			return err
		}
		return tx.Links().DeleteByFile(ctx, siteID, fileID)
	})
	if err != nil {
		return storageErr(err)
	}
	if entry == nil {
		return nil
	}

	if err := p.content.Delete(ctx, entry.Path); err != nil {
		p.logger.Warn(ctx, "failed to delete file content", "site", siteID, "file", fileID, "error", err)
	}

	p.metrics.Removed(1)
	p.publish(ctx, events.Event{Type: events.FileRemoved, SiteID: siteID, FileID: fileID, URL: entry.URL})
	return nil
}

// RemoveFileByURL is RemoveFileByID for a remote URL.
func (p *Pool) RemoveFileByURL(ctx context.Context, siteID, url string) error {
	_, fileID, _, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return err
	}
	return p.RemoveFileByID(ctx, siteID, fileID)
}

// RemoveFilesByComponent removes every file linked to the component.
func (p *Pool) RemoveFilesByComponent(ctx context.Context, siteID, component, componentID string) error {
	ids, err := p.store.Links().FileIDsByComponent(ctx, siteID, component, componentID)
	if err != nil {
		return storageErr(err)
	}
	for _, id := range ids {
		if err := p.RemoveFileByID(ctx, siteID, id); err != nil {
			return err
		}
	}
	return nil
}

// ComponentHasFiles reports whether any file is linked to the component.
// It fails with common.ErrorNotFound when none is.
func (p *Pool) ComponentHasFiles(ctx context.Context, siteID, component, componentID string) (bool, error) {
	ids, err := p.store.Links().FileIDsByComponent(ctx, siteID, component, componentID)
	if err != nil {
		return false, storageErr(err)
	}
	if len(ids) == 0 {
		return false, common.ErrorNotFound
	}
	return true, nil
}

// FilesByComponent returns the pool entries linked to the component.
// Linked files that are still queued are left out.
func (p *Pool) FilesByComponent(ctx context.Context, siteID, component, componentID string) ([]*models.FileEntry, error) {
	ids, err := p.store.Links().FileIDsByComponent(ctx, siteID, component, componentID)
	if err != nil {
		return nil, storageErr(err)
	}

	result := make([]*models.FileEntry, 0, len(ids))
	for _, id := range ids {
		e, err := p.store.Files().Get(ctx, siteID, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, storageErr(err)
		}
		result = append(result, e)
	}
	return result, nil
}

// RemoveSite wipes every file, queue entry, link and byte of the site.
// Waiters of the site get common.ErrCanceled.
func (p *Pool) RemoveSite(ctx context.Context, siteID string) error {
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if err := tx.Queue().DeleteBySite(ctx, siteID); err != nil {
			return err
		}
		if err := tx.Links().DeleteBySite(ctx, siteID); err != nil {
			return err
		}
		return tx.Files().DeleteBySite(ctx, siteID)
	})
	if err != nil {
		return storageErr(err)
	}

	p.cancelSiteWaiters(siteID)

	if err := p.content.DeleteSite(ctx, siteID); err != nil {
		return storageErr(err)
	}
	p.publish(ctx, events.Event{Type: events.FileRemoved, SiteID: siteID})
	return nil
}
