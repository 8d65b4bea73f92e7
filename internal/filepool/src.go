package filepool

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/dmitrijs2005/filepool/internal/urlx"
)

// GetSrcByURL returns a local URL for the file behind url, downloading it
// first when needed. Outdated files are served as they are while a
// refresh is queued. Without connectivity a file that was never downloaded
// fails with common.ErrOffline. URLs that are not pluginfile URLs are
// returned unchanged.
func (p *Pool) GetSrcByURL(ctx context.Context, siteID, url, component, componentID string, timeModified int64) (string, error) {
	if !urlx.IsPluginfileURL(url) {
		return url, nil
	}

	fixed, fileID, revision, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return "", err
	}
	q := &models.QueueEntry{
		SiteID:       siteID,
		FileID:       fileID,
		URL:          fixed,
		Revision:     revision,
		TimeModified: timeModified,
		Links:        linkOf(component, componentID),
	}

	entry, err := p.store.Files().Get(ctx, siteID, fileID)
	if err == nil {
		return p.serveExisting(ctx, entry, q)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", storageErr(err)
	}

	if !p.net.Online() {
		return "", common.ErrOffline
	}

	d, err := p.enqueue(ctx, q)
	if err != nil {
		return "", err
	}
	if err := d.Wait(ctx); err != nil {
		return "", err
	}

	entry, err = p.store.Files().Get(ctx, siteID, fileID)
	if err != nil {
		return "", storageErr(err)
	}
	return p.content.URL(ctx, entry.Path)
}

// GetURLByURL is GetSrcByURL for references that may point at the remote
// file: when the file is not downloaded yet it is queued in the background
// and the fixed remote URL is returned right away.
func (p *Pool) GetURLByURL(ctx context.Context, siteID, url, component, componentID string, timeModified int64) (string, error) {
	if !urlx.IsPluginfileURL(url) {
		return url, nil
	}

	fixed, fileID, revision, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return "", err
	}
	q := &models.QueueEntry{
		SiteID:       siteID,
		FileID:       fileID,
		URL:          fixed,
		Revision:     revision,
		TimeModified: timeModified,
		Links:        linkOf(component, componentID),
	}

	entry, err := p.store.Files().Get(ctx, siteID, fileID)
	if err == nil {
		return p.serveExisting(ctx, entry, q)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", storageErr(err)
	}

	if p.net.Online() {
		if _, err := p.enqueue(ctx, q); err != nil {
			p.logger.Warn(ctx, "failed to queue file", "site", siteID, "file", fileID, "error", err)
		}
	}
	return fixed, nil
}

// serveExisting links a pool file to the requesting component, queues a
// refresh when it is outdated and returns its local URL.
func (p *Pool) serveExisting(ctx context.Context, entry *models.FileEntry, q *models.QueueEntry) (string, error) {
	if len(q.Links) > 0 {
		if err := p.store.Links().Add(ctx, q.SiteID, q.FileID, q.Links); err != nil {
			return "", storageErr(err)
		}
	}
	if IsFileOutdated(entry, q.Revision, timeModifiedPtr(q.TimeModified)) && p.net.Online() {
		if _, err := p.enqueue(ctx, q); err != nil {
			p.logger.Warn(ctx, "failed to queue refresh", "site", q.SiteID, "file", q.FileID, "error", err)
		}
	}
	return p.content.URL(ctx, entry.Path)
}

func linkOf(component, componentID string) []models.Link {
	if component == "" {
		return nil
	}
	return []models.Link{{Component: component, ComponentID: componentID}}
}
