// Package localserve exposes downloaded files over HTTP so that web views
// can load them. File URLs carry a short-lived signed token bound to the
// file; the server also answers health, readiness and metrics probes.
package localserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/filepool/internal/auth"
	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/content"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/telemetry"
	"github.com/dmitrijs2005/filepool/internal/urlx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Addr   string
	Secret []byte

	AllowedOrigins []string
	// RequestsPerMinute limits requests per client IP; zero disables it.
	RequestsPerMinute int

	// Ready backs /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	content content.Store
	opts    Options
	logger  logging.Logger
}

func New(store content.Store, opts Options, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{content: store, opts: opts, logger: logger.With("module", "localserve")}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	allowed := s.opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))
	if s.opts.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(s.opts.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Ready != nil {
			if err := s.opts.Ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Method(http.MethodGet, "/files/{siteID}/{name}", telemetry.Middleware("localserve.file")(http.HandlerFunc(s.serveFile)))

	return r
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "siteID") + "/" + chi.URLParam(r, "name")

	siteID, fileID, ok := content.SplitKey(key)
	if !ok {
		http.NotFound(w, r)
		return
	}

	err := auth.Verify(r.URL.Query().Get("token"), s.opts.Secret, siteID, fileID)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, common.ErrTokenExpired) {
			status = http.StatusUnauthorized
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	rc, err := s.content.Open(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error(ctx, "failed to open file", "key", key, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	name := chi.URLParam(r, "name")
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		if mt, ok := urlx.MimeTypeFromExtension(ext); ok {
			w.Header().Set("Content-Type", mt)
		}
	}

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(ctx, "failed to stream file", "key", key, "error", err)
	}
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping local file server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting local file server", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
