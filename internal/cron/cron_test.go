package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/logging"
	"github.com/dmitrijs2005/filepool/internal/repositories/metadata"
	"github.com/dmitrijs2005/filepool/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type flagNet struct{ online atomic.Bool }

func (f *flagNet) Online() bool { return f.online.Load() }

func newMeta(t *testing.T) metadata.Repository {
	t.Helper()
	st, err := storage.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st.Metadata()
}

func newScheduler(t *testing.T, net *flagNet) (*Scheduler, *fakeClock, metadata.Repository) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	meta := newMeta(t)
	if net == nil {
		net = &flagNet{}
		net.online.Store(true)
	}
	return New(meta, net, logging.Nop(), nil, WithClock(clock.Now)), clock, meta
}

func counter(n *atomic.Int32, err error) Handler {
	return func(context.Context) error {
		n.Add(1)
		return err
	}
}

func TestRegister(t *testing.T) {
	s, _, _ := newScheduler(t, nil)

	require.NoError(t, s.Register(Hook{Name: "sync", Interval: time.Minute, Handler: counter(new(atomic.Int32), nil)}))
	err := s.Register(Hook{Name: "sync", Handler: counter(new(atomic.Int32), nil)})
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)

	iv, err := s.Interval("sync")
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, iv, "short intervals are raised to the minimum")

	require.NoError(t, s.Register(Hook{Name: "slow", Interval: time.Hour, Handler: counter(new(atomic.Int32), nil)}))
	iv, err = s.Interval("slow")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, iv)

	assert.Error(t, s.Register(Hook{Name: "nohandler"}))
	_, err = s.Interval("missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRunDue_HonorsInterval(t *testing.T) {
	s, clock, meta := newScheduler(t, nil)
	ctx := context.Background()
	var n atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "sync", Interval: 10 * time.Minute, Handler: counter(&n, nil)}))

	wait := s.RunDue(ctx)
	assert.EqualValues(t, 1, n.Load(), "never ran, so it is due")
	assert.Equal(t, 10*time.Minute, wait)

	last, err := s.LastExecution(ctx, "sync")
	require.NoError(t, err)
	assert.True(t, last.Equal(clock.Now()))
	raw, err := meta.Get(ctx, "cron.last_execution_sync")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	clock.Advance(4 * time.Minute)
	wait = s.RunDue(ctx)
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, 6*time.Minute, wait)

	clock.Advance(6 * time.Minute)
	s.RunDue(ctx)
	assert.EqualValues(t, 2, n.Load())
}

func TestRunDue_LastExecutionSurvivesRestart(t *testing.T) {
	s, clock, meta := newScheduler(t, nil)
	ctx := context.Background()
	var n atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "sync", Handler: counter(&n, nil)}))
	s.RunDue(ctx)

	online := &flagNet{}
	online.online.Store(true)
	restarted := New(meta, online, nil, nil, WithClock(clock.Now))
	require.NoError(t, restarted.Register(Hook{Name: "sync", Handler: counter(&n, nil)}))

	clock.Advance(time.Minute)
	wait := restarted.RunDue(ctx)
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, 4*time.Minute, wait)
}

func TestRunDue_SkipsNetworkHooksOffline(t *testing.T) {
	net := &flagNet{}
	s, _, _ := newScheduler(t, net)
	ctx := context.Background()

	var remote, local atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "remote", UsesNetwork: true, Handler: counter(&remote, nil)}))
	require.NoError(t, s.Register(Hook{Name: "local", Handler: counter(&local, nil)}))

	wait := s.RunDue(ctx)
	assert.Zero(t, remote.Load())
	assert.EqualValues(t, 1, local.Load())
	assert.Equal(t, DefaultInterval, wait)

	net.online.Store(true)
	s.RunDue(ctx)
	assert.EqualValues(t, 1, remote.Load())
	assert.EqualValues(t, 1, local.Load())
}

func TestRunDue_BacksOffFailures(t *testing.T) {
	s, clock, _ := newScheduler(t, nil)
	ctx := context.Background()
	var n atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "flaky", Interval: 30 * time.Minute, Handler: counter(&n, errors.New("boom"))}))

	var waits []time.Duration
	for i := 0; i < 4; i++ {
		w := s.RunDue(ctx)
		waits = append(waits, w)
		clock.Advance(w)
	}
	assert.Equal(t, []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute}, waits)
	assert.EqualValues(t, 4, n.Load())

	last, err := s.LastExecution(ctx, "flaky")
	require.NoError(t, err)
	assert.True(t, last.IsZero(), "failures are not recorded as executions")
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Minute, backoff(5*time.Minute, time.Hour, 1))
	assert.Equal(t, 40*time.Minute, backoff(5*time.Minute, time.Hour, 4))
	assert.Equal(t, time.Hour, backoff(5*time.Minute, time.Hour, 50))
	assert.Equal(t, 5*time.Minute, backoff(5*time.Minute, 5*time.Minute, 3))
}

func TestTrigger(t *testing.T) {
	s, _, _ := newScheduler(t, nil)
	ctx := context.Background()
	var n atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "sync", Handler: counter(&n, nil)}))

	s.RunDue(ctx)
	s.RunDue(ctx)
	assert.EqualValues(t, 1, n.Load())

	require.NoError(t, s.Trigger("sync"))
	s.RunDue(ctx)
	assert.EqualValues(t, 2, n.Load())

	assert.ErrorIs(t, s.Trigger("missing"), common.ErrorNotFound)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	online := &flagNet{}
	online.online.Store(true)
	s := New(newMeta(t), online, logging.Nop(), nil, WithMinInterval(10*time.Millisecond))

	var n atomic.Int32
	require.NoError(t, s.Register(Hook{Name: "tick", Handler: counter(&n, nil)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
