// Package netx tracks whether the remote side is reachable. The pool and
// the cron scheduler consult it before touching the network.
package netx

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/filepool/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Pinger probes connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker reports connectivity.
type Checker interface {
	Online() bool
}

// AlwaysOnline is a Checker for callers that do not monitor the network.
type AlwaysOnline struct{}

func (AlwaysOnline) Online() bool { return true }

// Monitor pings periodically and keeps the last known mode. It starts
// online so that requests are attempted before the first probe completes.
type Monitor struct {
	pinger  Pinger
	timeout time.Duration
	logger  logging.Logger

	mu        sync.RWMutex
	mode      Mode
	listeners []func(Mode)
}

func NewMonitor(p Pinger, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Monitor{
		pinger:  p,
		timeout: 3 * time.Second,
		logger:  logger.With("module", "netx"),
		mode:    ModeOnline,
	}
}

func (m *Monitor) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *Monitor) Online() bool {
	return m.Mode() == ModeOnline
}

// OnChange registers fn to be called after every transition.
func (m *Monitor) OnChange(fn func(Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Monitor) setMode(ctx context.Context, mode Mode) {
	m.mu.Lock()
	if m.mode == mode {
		m.mu.Unlock()
		return
	}
	m.mode = mode
	listeners := append([]func(Mode){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Info(ctx, "connectivity changed", "mode", string(mode))
	for _, fn := range listeners {
		fn(mode)
	}
}

// Check pings once and updates the mode.
func (m *Monitor) Check(ctx context.Context) Mode {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(pctx)
	cancel()

	if err != nil {
		m.logger.Debug(ctx, "ping failed", "error", err)
		m.setMode(ctx, ModeOffline)
	} else {
		m.setMode(ctx, ModeOnline)
	}
	return m.Mode()
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
