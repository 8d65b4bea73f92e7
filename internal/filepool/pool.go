package filepool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/content"
	"github.com/dmitrijs2005/filepool/internal/events"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/metrics"
	"github.com/dmitrijs2005/filepool/internal/models"
	"github.com/dmitrijs2005/filepool/internal/netx"
	"github.com/dmitrijs2005/filepool/internal/storage"
	"github.com/dmitrijs2005/filepool/internal/urlx"
)

// SiteResolver maps a site id to the site's URL and token.
type SiteResolver interface {
	Get(ctx context.Context, id string) (*models.Site, error)
}

// Downloader fetches remote bytes.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

type Options struct {
	Store      storage.Store
	Content    content.Store
	Downloader Downloader

	// Sites defaults to the store's sites repository.
	Sites SiteResolver
	// Network defaults to always online.
	Network netx.Checker

	Logger  logging.Logger
	Metrics *metrics.Metrics
	Events  events.Publisher

	// OfflineRetry is how often an idle worker rechecks connectivity while
	// offline. Defaults to 30s.
	OfflineRetry time.Duration
}

type Pool struct {
	store   storage.Store
	content content.Store
	dl      Downloader
	sites   SiteResolver
	net     netx.Checker
	logger  logging.Logger
	metrics *metrics.Metrics
	events  events.Publisher

	offlineRetry time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	workers  map[string]*worker
	waiters  map[fileKey][]*Download
	inFlight map[fileKey]int
}

type fileKey struct {
	siteID string
	fileID string
}

func New(opts Options) (*Pool, error) {
	if opts.Store == nil {
		return nil, errors.New("filepool: store is required")
	}
	if opts.Content == nil {
		return nil, errors.New("filepool: content store is required")
	}
	if opts.Downloader == nil {
		return nil, errors.New("filepool: downloader is required")
	}

	p := &Pool{
		store:        opts.Store,
		content:      opts.Content,
		dl:           opts.Downloader,
		sites:        opts.Sites,
		net:          opts.Network,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		events:       opts.Events,
		offlineRetry: opts.OfflineRetry,
		workers:      make(map[string]*worker),
		waiters:      make(map[fileKey][]*Download),
		inFlight:     make(map[fileKey]int),
	}
	if p.sites == nil {
		p.sites = opts.Store.Sites()
	}
	if p.net == nil {
		p.net = netx.AlwaysOnline{}
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	p.logger = p.logger.With("module", "filepool")
	if p.events == nil {
		p.events = events.Nop{}
	}
	if p.offlineRetry <= 0 {
		p.offlineRetry = 30 * time.Second
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	return p, nil
}

// Start resumes the workers of every site with pending downloads, e.g.
// after a restart.
func (p *Pool) Start(ctx context.Context) error {
	siteIDs, err := p.store.Queue().Sites(ctx)
	if err != nil {
		return storageErr(err)
	}
	for _, id := range siteIDs {
		if err := p.wake(id); err != nil {
			return err
		}
	}
	if len(siteIDs) > 0 {
		p.logger.Info(ctx, "resumed download queues", "sites", len(siteIDs))
	}
	return nil
}

// Resume wakes every running worker, typically after connectivity came
// back.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		w.notify()
	}
}

// Close stops the workers and waits for them. In-flight downloads are
// abandoned and stay queued; pending waiters get common.ErrCanceled.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, ws := range p.waiters {
		for _, d := range ws {
			d.resolve(common.ErrCanceled)
		}
		delete(p.waiters, key)
	}
	return nil
}

func (p *Pool) site(ctx context.Context, siteID string) (*models.Site, error) {
	s, err := p.sites.Get(ctx, siteID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("site %s: %w", siteID, err)
		}
		return nil, storageErr(err)
	}
	return s, nil
}

// FixPluginfileURL makes url absolute and token-bearing for the site.
// URLs that are not pluginfile URLs are returned unchanged.
func (p *Pool) FixPluginfileURL(ctx context.Context, siteID, url string) (string, error) {
	s, err := p.site(ctx, siteID)
	if err != nil {
		return "", err
	}
	return urlx.FixPluginfileURL(s.URL, s.Token, url), nil
}

// resolveURL fixes url and derives the file id and the revision.
func (p *Pool) resolveURL(ctx context.Context, siteID, url string) (fixed, fileID string, revision *int64, err error) {
	fixed, err = p.FixPluginfileURL(ctx, siteID, url)
	if err != nil {
		return "", "", nil, err
	}
	if r, ok := urlx.RevisionFromURL(fixed); ok {
		revision = &r
	}
	return fixed, urlx.FileIDByURL(fixed), revision, nil
}

func (p *Pool) publish(ctx context.Context, e events.Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	e.URL = urlx.StripToken(e.URL)
	if err := p.events.Publish(ctx, e); err != nil {
		p.logger.Warn(ctx, "failed to publish event", "type", string(e.Type), "error", err)
	}
}

// storageErr tags store failures with common.ErrStorage. Not-found
// results keep their identity.
func storageErr(err error) error {
	if err == nil || errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}

func timeModifiedPtr(tm int64) *int64 {
	if tm <= 0 {
		return nil
	}
	return &tm
}
