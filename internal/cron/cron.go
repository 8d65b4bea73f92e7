// Package cron runs named background hooks at fixed intervals. The last
// successful execution of each hook is persisted, so intervals survive
// restarts. Hooks that need the network are skipped while offline, and a
// failing hook is retried with an exponential backoff instead of waiting for
// its full interval.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/metrics"
	"github.com/dmitrijs2005/filepool/internal/netx"
	"github.com/dmitrijs2005/filepool/internal/repositories/metadata"
)

// DefaultInterval is both the default and the minimum hook interval.
const DefaultInterval = 5 * time.Minute

const lastExecutionPrefix = "cron.last_execution_"

type Handler func(ctx context.Context) error

type Hook struct {
	Name string
	// Interval between successful runs. Raised to the scheduler minimum.
	Interval    time.Duration
	UsesNetwork bool
	Handler     Handler
}

type hookState struct {
	hook     Hook
	failures int
	retryAt  time.Time
	forced   bool
}

type Scheduler struct {
	meta        metadata.Repository
	net         netx.Checker
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	minInterval time.Duration

	mu     sync.Mutex
	hooks  map[string]*hookState
	order  []string
	wakeCh chan struct{}
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMinInterval overrides DefaultInterval.
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

func New(meta metadata.Repository, net netx.Checker, logger logging.Logger, m *metrics.Metrics, opts ...Option) *Scheduler {
	if net == nil {
		net = netx.AlwaysOnline{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Scheduler{
		meta:        meta,
		net:         net,
		logger:      logger.With("module", "cron"),
		metrics:     m,
		now:         time.Now,
		minInterval: DefaultInterval,
		hooks:       make(map[string]*hookState),
		wakeCh:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a hook. Names must be unique.
func (s *Scheduler) Register(h Hook) error {
	if h.Name == "" || h.Handler == nil {
		return errors.New("cron: hook needs a name and a handler")
	}
	if h.Interval < s.minInterval {
		h.Interval = s.minInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hooks[h.Name]; ok {
		return fmt.Errorf("hook %s: %w", h.Name, common.ErrAlreadyRegistered)
	}
	s.hooks[h.Name] = &hookState{hook: h}
	s.order = append(s.order, h.Name)
	s.logger.Debug(context.Background(), "hook registered", "hook", h.Name, "interval", h.Interval.String())
	return nil
}

// Interval returns the effective interval of a registered hook.
func (s *Scheduler) Interval(name string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.hooks[name]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return st.hook.Interval, nil
}

// Trigger makes the hook run on the next pass regardless of its interval.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	st, ok := s.hooks[name]
	if ok {
		st.forced = true
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("hook %s: %w", name, common.ErrorNotFound)
	}

	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// LastExecution returns the time of the last successful run, zero if the
// hook never ran.
func (s *Scheduler) LastExecution(ctx context.Context, name string) (time.Time, error) {
	v, err := s.meta.Get(ctx, lastExecutionPrefix+name)
	if err != nil {
		return time.Time{}, err
	}
	if len(v) == 0 {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad last execution of %s: %w", name, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *Scheduler) setLastExecution(ctx context.Context, name string, t time.Time) error {
	return s.meta.Set(ctx, lastExecutionPrefix+name, []byte(strconv.FormatInt(t.UnixMilli(), 10)))
}

// Run executes due hooks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info(ctx, "cron started")
	for {
		wait := s.RunDue(ctx)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			s.logger.Info(ctx, "cron stopped")
			return
		case <-s.wakeCh:
			t.Stop()
		case <-t.C:
		}
	}
}

// RunDue runs every due hook once, in registration order, and returns how
// long to wait before the next pass.
func (s *Scheduler) RunDue(ctx context.Context) time.Duration {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	next := s.minInterval
	first := true
	consider := func(d time.Duration) {
		if first || d < next {
			next = d
			first = false
		}
	}

	online := s.net.Online()
	for _, name := range names {
		if ctx.Err() != nil {
			return s.minInterval
		}

		s.mu.Lock()
		st := s.hooks[name]
		h, failures, retryAt, forced := st.hook, st.failures, st.retryAt, st.forced
		s.mu.Unlock()

		if h.UsesNetwork && !online {
			s.logger.Debug(ctx, "skipping network hook while offline", "hook", name)
			consider(s.minInterval)
			continue
		}

		now := s.now()
		due := retryAt
		if failures == 0 {
			last, err := s.LastExecution(ctx, name)
			if err != nil {
				s.logger.Warn(ctx, "failed to read last execution", "hook", name, "error", err)
			}
			due = last.Add(h.Interval)
		}
		if !forced && now.Before(due) {
			consider(due.Sub(now))
			continue
		}

		err := s.runHook(ctx, h)

		s.mu.Lock()
		st.forced = false
		if err != nil {
			st.failures++
			wait := backoff(s.minInterval, h.Interval, st.failures)
			st.retryAt = now.Add(wait)
			consider(wait)
		} else {
			st.failures = 0
			st.retryAt = time.Time{}
			consider(h.Interval)
		}
		s.mu.Unlock()

		if err == nil {
			if err := s.setLastExecution(ctx, name, now); err != nil {
				s.logger.Warn(ctx, "failed to store last execution", "hook", name, "error", err)
			}
		}
	}
	return next
}

func (s *Scheduler) runHook(ctx context.Context, h Hook) error {
	s.logger.Debug(ctx, "running hook", "hook", h.Name)
	err := h.Handler(ctx)
	s.metrics.HookRun(h.Name, err)
	if err != nil {
		s.logger.Warn(ctx, "hook failed", "hook", h.Name, "error", err)
	}
	return err
}

// backoff doubles base for every consecutive failure, up to limit.
func backoff(base, limit time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d
}
