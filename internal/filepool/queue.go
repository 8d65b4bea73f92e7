package filepool

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/dmitrijs2005/filepool/internal/storage"
)

// Download is the pending result of one enqueue call.
type Download struct {
	SiteID string
	FileID string
	URL    string

	done chan struct{}
	err  error
}

func newDownload(siteID, fileID, url string) *Download {
	return &Download{SiteID: siteID, FileID: fileID, URL: url, done: make(chan struct{})}
}

// resolve must be called once, with p.mu held.
func (d *Download) resolve(err error) {
	d.err = err
	close(d.done)
}

// Done is closed once the download finished, failed or was canceled.
func (d *Download) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the download is resolved or ctx is done. It returns
// nil on success, the transfer or storage error on failure and
// common.ErrCanceled when the entry was removed before it started.
func (d *Download) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddToQueueByURL schedules url for download. Enqueuing a file that is
// already queued merges the links and replaces timeModified; the entry
// keeps its position.
func (p *Pool) AddToQueueByURL(ctx context.Context, siteID, url, component, componentID string, timeModified int64) (*Download, error) {
	fixed, fileID, revision, err := p.resolveURL(ctx, siteID, url)
	if err != nil {
		return nil, err
	}

	return p.enqueue(ctx, &models.QueueEntry{
		SiteID:       siteID,
		FileID:       fileID,
		URL:          fixed,
		Revision:     revision,
		TimeModified: timeModified,
		Links:        linkOf(component, componentID),
	})
}

func (p *Pool) enqueue(ctx context.Context, e *models.QueueEntry) (*Download, error) {
	key := fileKey{e.SiteID, e.FileID}
	d := newDownload(e.SiteID, e.FileID, e.URL)

	// Registered before the write so that a worker finishing this file in
	// between cannot miss it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, common.ErrCanceled
	}
	p.waiters[key] = append(p.waiters[key], d)
	p.mu.Unlock()

	err := p.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		cur, err := tx.Queue().Get(ctx, e.SiteID, e.FileID)
		switch {
		case err == nil:
			e.Links = models.MergeLinks(cur.Links, e.Links)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}
		return tx.Queue().Upsert(ctx, e)
	})
	if err != nil {
		p.dropWaiter(key, d)
		return nil, storageErr(err)
	}

	p.metrics.Enqueued()
	p.logger.Debug(ctx, "enqueued", "site", e.SiteID, "file", e.FileID)

	if err := p.wake(e.SiteID); err != nil {
		return nil, err
	}
	return d, nil
}

// HasFileInQueue returns the queue entry or common.ErrorNotFound.
func (p *Pool) HasFileInQueue(ctx context.Context, siteID, fileID string) (*models.QueueEntry, error) {
	e, err := p.store.Queue().Get(ctx, siteID, fileID)
	return e, storageErr(err)
}

// QueueEntries lists the pending downloads of a site in order.
func (p *Pool) QueueEntries(ctx context.Context, siteID string) ([]*models.QueueEntry, error) {
	entries, err := p.store.Queue().ListBySite(ctx, siteID)
	return entries, storageErr(err)
}

// RemoveFromQueue drops a pending download. Its waiters get
// common.ErrCanceled unless the transfer already started, in which case it
// runs to completion.
func (p *Pool) RemoveFromQueue(ctx context.Context, siteID, fileID string) error {
	if err := p.store.Queue().Delete(ctx, siteID, fileID); err != nil {
		return storageErr(err)
	}

	key := fileKey{siteID, fileID}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[key] > 0 {
		return nil
	}
	p.resolveLocked(key, len(p.waiters[key]), common.ErrCanceled)
	return nil
}

// QueueOutdatedFiles re-enqueues every stale file of the site with the
// links it already has. It returns how many files were queued.
func (p *Pool) QueueOutdatedFiles(ctx context.Context, siteID string) (int, error) {
	stale, err := p.store.Files().ListStale(ctx, siteID)
	if err != nil {
		return 0, storageErr(err)
	}

	n := 0
	for _, f := range stale {
		links, err := p.store.Links().ByFile(ctx, siteID, f.FileID)
		if err != nil {
			return n, storageErr(err)
		}
		if _, err := p.enqueue(ctx, &models.QueueEntry{
			SiteID:       siteID,
			FileID:       f.FileID,
			URL:          f.URL,
			Revision:     f.Revision,
			TimeModified: f.TimeModified,
			Links:        links,
		}); err != nil {
			return n, fmt.Errorf("queue %s: %w", f.FileID, err)
		}
		n++
	}
	return n, nil
}

// SyncAll queues the outdated files of every registered site.
func (p *Pool) SyncAll(ctx context.Context) error {
	sites, err := p.store.Sites().List(ctx)
	if err != nil {
		return storageErr(err)
	}

	var errs []error
	for _, s := range sites {
		n, err := p.QueueOutdatedFiles(ctx, s.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", s.ID, err))
			continue
		}
		if n > 0 {
			p.logger.Info(ctx, "queued outdated files", "site", s.ID, "count", n)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) dropWaiter(key fileKey, d *Download) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := p.waiters[key]
	for i, w := range ws {
		if w == d {
			p.waiters[key] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(p.waiters[key]) == 0 {
		delete(p.waiters, key)
	}
}

// resolveLocked resolves the first n waiters of key. p.mu must be held.
func (p *Pool) resolveLocked(key fileKey, n int, err error) {
	ws := p.waiters[key]
	if n > len(ws) {
		n = len(ws)
	}
	for _, d := range ws[:n] {
		d.resolve(err)
	}
	if rest := ws[n:]; len(rest) > 0 {
		p.waiters[key] = append([]*Download(nil), rest...)
	} else {
		delete(p.waiters, key)
	}
}

func (p *Pool) cancelSiteWaiters(siteID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, ws := range p.waiters {
		if key.siteID != siteID || p.inFlight[key] > 0 {
			continue
		}
		p.resolveLocked(key, len(ws), common.ErrCanceled)
	}
}
