// Package server runs the filepool daemon: the download workers, the
// connectivity monitor, the sync scheduler, the local file server and the
// gRPC health endpoint, until a termination signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/filepool/internal/config"
	"github.com/dmitrijs2005/filepool/internal/localserve"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/netx"
	"github.com/dmitrijs2005/filepool/internal/service"
	"github.com/dmitrijs2005/filepool/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"

	gs "github.com/dmitrijs2005/filepool/internal/server/grpc"
)

const serviceName = "filepoold"

type App struct {
	config            *config.Config
	logger            logging.Logger
	svc               *service.Service
	files             *localserve.Server
	health            *gs.HealthServer
	shutdownTelemetry func(context.Context) error
}

type appOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	return newApp(ctx, c, logger, appOptions{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	})
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, opts appOptions) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger(os.Stdout, c.LogLevel)
	}

	shutdown, err := telemetry.Init(ctx, serviceName, c.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(ctx, c, logger, service.Options{SignedLinks: true, Registerer: opts.registerer})
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("service init error: %w", err)
	}

	app := &App{
		config:            c,
		logger:            logger,
		svc:               svc,
		shutdownTelemetry: shutdown,
	}

	app.files = localserve.New(svc.Content, localserve.Options{
		Addr:              c.ListenAddr,
		Secret:            []byte(c.SecretKey),
		AllowedOrigins:    c.AllowedOrigins,
		RequestsPerMinute: c.RequestsPerMinute,
		Ready:             svc.Ready,
		Gatherer:          opts.gatherer,
	}, logger)

	if c.GRPCAddr != "" {
		app.health = gs.NewHealthServer(c.GRPCAddr, logger)
		svc.Monitor.OnChange(func(m netx.Mode) {
			app.health.SetServing(gs.ServiceNetwork, m == netx.ModeOnline)
		})
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run listens on the configured addresses and blocks until a signal
// arrives, ctx is canceled or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	filesLn, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		app.close(ctx)
		return fmt.Errorf("listen %s: %w", app.config.ListenAddr, err)
	}

	var healthLn net.Listener
	if app.health != nil {
		healthLn, err = net.Listen("tcp", app.config.GRPCAddr)
		if err != nil {
			_ = filesLn.Close()
			app.close(ctx)
			return fmt.Errorf("listen %s: %w", app.config.GRPCAddr, err)
		}
	}

	return app.serve(ctx, filesLn, healthLn)
}

func (app *App) serve(ctx context.Context, filesLn, healthLn net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.svc.Start(ctx); err != nil {
		stopped := ctx.Err() != nil
		cancelFunc()
		_ = filesLn.Close()
		if healthLn != nil {
			_ = healthLn.Close()
		}
		app.close(ctx)
		if stopped {
			app.logger.Info(ctx, "App stopped before start")
			return nil
		}
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		app.logger.Error(ctx, err.Error())
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancelFunc()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.files.Serve(ctx, filesLn); err != nil {
			fail(fmt.Errorf("local file server: %w", err))
		}
	}()

	if app.health != nil && healthLn != nil {
		app.health.SetServing(gs.ServiceNetwork, app.svc.Monitor.Online())
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := app.health.Serve(ctx, healthLn); err != nil {
				fail(fmt.Errorf("grpc server: %w", err))
			}
		}()
		go func() {
			defer wg.Done()
			app.watchStore(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	app.close(ctx)

	app.logger.Info(ctx, "App stopped")
	return errors.Join(errs...)
}

// watchStore mirrors store readiness into the health service.
func (app *App) watchStore(ctx context.Context) {
	interval := app.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		app.health.SetServing(gs.ServiceStore, app.svc.Ready(ctx) == nil)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (app *App) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := app.svc.Close(); err != nil {
		app.logger.Error(ctx, "failed to close service", "error", err)
	}
	if err := app.shutdownTelemetry(ctx); err != nil {
		app.logger.Error(ctx, "failed to flush telemetry", "error", err)
	}
}
