package filepool

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/events"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/dmitrijs2005/filepool/internal/storage"
	"github.com/dmitrijs2005/filepool/internal/telemetry"
	"github.com/dmitrijs2005/filepool/internal/urlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// worker drains the queue of one site.
type worker struct {
	siteID string
	wakeCh chan struct{}
}

func newWorker(siteID string) *worker {
	return &worker{siteID: siteID, wakeCh: make(chan struct{}, 1)}
}

// notify never blocks; pending wake-ups collapse into one.
func (w *worker) notify() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// wake starts the site worker if needed and nudges it.
func (p *Pool) wake(siteID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.ErrCanceled
	}

	w, ok := p.workers[siteID]
	if !ok {
		w = newWorker(siteID)
		p.workers[siteID] = w
		p.wg.Add(1)
		go p.runWorker(w)
	}
	w.notify()
	return nil
}

func (p *Pool) runWorker(w *worker) {
	defer p.wg.Done()
	ctx := p.ctx
	log := p.logger.With("site", w.siteID)

	idle := func(d time.Duration) bool {
		var timeout <-chan time.Time
		if d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-w.wakeCh:
		case <-timeout:
		case <-ctx.Done():
			return false
		}
		return true
	}

	for ctx.Err() == nil {
		if !p.net.Online() {
			if !idle(p.offlineRetry) {
				return
			}
			continue
		}

		entry, err := p.store.Queue().Next(ctx, w.siteID)
		if errors.Is(err, common.ErrorNotFound) {
			if !idle(0) {
				return
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error(ctx, "failed to read queue", "error", err)
			if !idle(p.offlineRetry) {
				return
			}
			continue
		}

		if err := p.process(ctx, entry); err != nil {
			log.Error(ctx, "failed to drop queue entry", "file", entry.FileID, "error", err)
			if !idle(p.offlineRetry) {
				return
			}
		}
	}
}

// process downloads one entry and resolves its waiters. The returned error
// is only set when a failed entry could not be removed from the queue.
func (p *Pool) process(ctx context.Context, e *models.QueueEntry) error {
	key := fileKey{e.SiteID, e.FileID}

	p.mu.Lock()
	p.inFlight[key]++
	waiting := len(p.waiters[key])
	p.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "filepool.download", trace.WithAttributes(
		attribute.String("filepool.site", e.SiteID),
		attribute.String("filepool.file", e.FileID),
	))
	defer span.End()

	finish := p.metrics.DownloadStarted()
	size, kept, err := p.download(ctx, e)
	finish(size, err)

	if err != nil && p.ctx.Err() != nil {
		// Shutting down: the entry stays queued for the next start.
		p.mu.Lock()
		p.leaveFlightLocked(key)
		p.mu.Unlock()
		return nil
	}

	var dropErr error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn(ctx, "download failed", "site", e.SiteID, "file", e.FileID, "error", err)
		dropErr = p.store.Queue().Delete(ctx, e.SiteID, e.FileID)
		p.publish(ctx, events.Event{Type: events.FileDownloadFailed, SiteID: e.SiteID, FileID: e.FileID, URL: e.URL, Error: err.Error()})
	} else {
		p.logger.Info(ctx, "downloaded", "site", e.SiteID, "file", e.FileID, "bytes", size)
		p.publish(ctx, events.Event{Type: events.FileDownloaded, SiteID: e.SiteID, FileID: e.FileID, URL: e.URL})
	}

	p.mu.Lock()
	p.leaveFlightLocked(key)
	if kept {
		// Waiters that arrived during the transfer asked for newer content.
		p.resolveLocked(key, waiting, nil)
	} else {
		p.resolveLocked(key, len(p.waiters[key]), err)
	}
	p.mu.Unlock()

	return dropErr
}

func (p *Pool) leaveFlightLocked(key fileKey) {
	if p.inFlight[key]--; p.inFlight[key] <= 0 {
		delete(p.inFlight, key)
	}
}

// download writes the bytes, then commits the file entry, its links and
// the queue removal together. kept is true when the entry was re-enqueued
// for newer content meanwhile and therefore stays queued.
func (p *Pool) download(ctx context.Context, e *models.QueueEntry) (size int64, kept bool, err error) {
	ext, _ := urlx.GuessExtensionFromURL(e.URL)

	rc, err := p.dl.Download(ctx, e.URL)
	if err != nil {
		return 0, false, err
	}
	path, size, err := p.content.Put(ctx, e.SiteID, e.FileID, ext, rc)
	_ = rc.Close()
	if err != nil {
		return 0, false, storageErr(err)
	}

	var oldPath string
	err = p.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		kept, oldPath = false, ""

		old, err := tx.Files().Get(ctx, e.SiteID, e.FileID)
		switch {
		case err == nil && old.Path != path:
			oldPath = old.Path
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return err
		}

		links := e.Links
		cur, err := tx.Queue().Get(ctx, e.SiteID, e.FileID)
		switch {
		case err == nil:
			links = models.MergeLinks(links, cur.Links)
		case errors.Is(err, common.ErrorNotFound):
			cur = nil
		default:
			return err
		}

		if err := tx.Files().Upsert(ctx, &models.FileEntry{
			SiteID:       e.SiteID,
			FileID:       e.FileID,
			URL:          e.URL,
			Path:         path,
			Extension:    ext,
			Revision:     e.Revision,
			TimeModified: e.TimeModified,
			Size:         size,
			DownloadedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.Links().Add(ctx, e.SiteID, e.FileID, links); err != nil {
			return err
		}

		if cur != nil && supersedes(cur, e) {
			kept = true
			return nil
		}
		return tx.Queue().Delete(ctx, e.SiteID, e.FileID)
	})
	if err != nil {
		p.discardContent(ctx, e, path)
		return 0, false, storageErr(err)
	}

	if oldPath != "" {
		if err := p.content.Delete(ctx, oldPath); err != nil {
			p.logger.Warn(ctx, "failed to delete replaced content", "site", e.SiteID, "file", e.FileID, "error", err)
		}
	}
	return size, kept, nil
}

// discardContent removes bytes written for a download whose commit failed,
// unless a committed entry already points at the same key.
func (p *Pool) discardContent(ctx context.Context, e *models.QueueEntry, path string) {
	ctx = context.WithoutCancel(ctx)
	if old, err := p.store.Files().Get(ctx, e.SiteID, e.FileID); err == nil && old.Path == path {
		return
	}
	if err := p.content.Delete(ctx, path); err != nil {
		p.logger.Warn(ctx, "failed to delete partial content", "site", e.SiteID, "file", e.FileID, "error", err)
	}
}

// supersedes reports whether cur asks for newer content than e.
func supersedes(cur, e *models.QueueEntry) bool {
	if cur.TimeModified > e.TimeModified {
		return true
	}
	return cur.Revision != nil && (e.Revision == nil || *cur.Revision > *e.Revision)
}
