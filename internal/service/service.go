// Package service assembles the file pool and its collaborators from a
// Config. The daemon and the CLI share it; only the daemon serves files
// over HTTP, so only the daemon asks for signed links.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/content"
	"github.com/dmitrijs2005/filepool/internal/cron"
	"github.com/dmitrijs2005/filepool/internal/events"
	"github.com/dmitrijs2005/filepool/internal/filepool"
	"github.com/dmitrijs2005/filepool/internal/localserve"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/metrics"
	"github.com/dmitrijs2005/filepool/internal/netx"
	"github.com/dmitrijs2005/filepool/internal/sites"
	"github.com/dmitrijs2005/filepool/internal/storage"
	"github.com/dmitrijs2005/filepool/internal/wsclient"
	"github.com/prometheus/client_golang/prometheus"
)

// SyncHook re-enqueues the stale files of every site.
const SyncHook = "filepool.sync"

type Options struct {
	// SignedLinks makes pool URLs point at the local file server.
	SignedLinks bool
	// Registerer receives the pool metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

type Service struct {
	Config  *config.Config
	Store   storage.Store
	Content content.Store
	WS      *wsclient.Client
	Monitor *netx.Monitor
	Metrics *metrics.Metrics
	Events  events.Publisher
	Pool    *filepool.Pool
	Sites   *sites.Registry
	Cron    *cron.Scheduler

	logger  logging.Logger
	closers []func() error
	wg      sync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (_ *Service, err error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Service{Config: cfg, logger: logger, WS: wsclient.New()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	s.Store, err = storage.Open(ctx, storage.Options{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN()})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.closers = append(s.closers, s.Store.Close)

	s.Content, err = newContent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	poolContent := s.Content
	if _, isDisk := s.Content.(*content.Disk); isDisk && opts.SignedLinks {
		poolContent = localserve.NewLinker(s.Content, cfg.PublicBaseURL, []byte(cfg.SecretKey), cfg.LinkTTL)
	}

	s.Events = events.Nop{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		s.Events = pub
		s.closers = append(s.closers, func() error { pub.Close(); return nil })
	}

	s.Metrics = metrics.New(opts.Registerer)
	s.Monitor = netx.NewMonitor(netx.PingerFunc(s.ping), logger)

	s.Pool, err = filepool.New(filepool.Options{
		Store:        s.Store,
		Content:      poolContent,
		Downloader:   s.WS,
		Network:      s.Monitor,
		Logger:       logger,
		Metrics:      s.Metrics,
		Events:       s.Events,
		OfflineRetry: cfg.OfflineRetry,
	})
	if err != nil {
		return nil, err
	}
	// Closed before the store.
	s.closers = append(s.closers, s.Pool.Close)

	s.Sites = sites.NewRegistry(s.Store.Sites(), s.WS, s.Pool, logger)

	s.Cron = cron.New(s.Store.Metadata(), s.Monitor, logger, s.Metrics)
	if cfg.SyncInterval > 0 {
		err := s.Cron.Register(cron.Hook{
			Name:        SyncHook,
			Interval:    cfg.SyncInterval,
			UsesNetwork: true,
			Handler:     s.Pool.SyncAll,
		})
		if err != nil {
			return nil, err
		}
	}

	s.Monitor.OnChange(func(m netx.Mode) {
		if m == netx.ModeOnline {
			s.Pool.Resume()
		}
	})

	return s, nil
}

func newContent(ctx context.Context, cfg *config.Config) (content.Store, error) {
	switch cfg.ContentBackend {
	case "s3":
		return content.NewS3(ctx, content.S3Options{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Prefix:     cfg.S3Prefix,
			PresignTTL: cfg.LinkTTL,
		})
	default:
		return content.NewDisk(cfg.ContentRoot())
	}
}

// ping probes ProbeURL, or every registered site when no probe is set.
// With nothing to probe the service counts as online.
func (s *Service) ping(ctx context.Context) error {
	if s.Config.ProbeURL != "" {
		return s.WS.Ping(ctx, s.Config.ProbeURL)
	}

	all, err := s.Store.Sites().List(ctx)
	if err != nil || len(all) == 0 {
		return nil
	}
	var errs []error
	for _, site := range all {
		err := s.WS.Ping(ctx, site.URL)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Start resumes pending downloads and runs the connectivity monitor and
// the cron scheduler until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Pool.Start(ctx); err != nil {
		return err
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.Monitor.Run(ctx, s.Config.PingInterval)
	}()
	go func() {
		defer s.wg.Done()
		s.Cron.Run(ctx)
	}()
	return nil
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

// Close stops the pool and releases the store. Background loops started by
// Start must have been stopped through their context first.
func (s *Service) Close() error {
	s.wg.Wait()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
