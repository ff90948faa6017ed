package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	convCalls   atomic.Int64
	threadCalls atomic.Int64
	convErr     error
	delay       time.Duration
}

func (f *fakeSyncer) SyncConversations(ctx context.Context, background bool) error {
	f.convCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.convErr
}

func (f *fakeSyncer) SyncSelected(ctx context.Context, background bool) error {
	f.threadCalls.Add(1)
	return nil
}

// newFastPoller bypasses the interval floor so the loop tests run in
// milliseconds.
func newFastPoller(interval time.Duration, syncer Syncer) *Poller {
	poller := NewPoller(PollerConfig{}, syncer)
	poller.interval = interval
	return poller
}

func TestPollerStartStopLifecycle(t *testing.T) {
	syncer := &fakeSyncer{}
	poller := newFastPoller(20*time.Millisecond, syncer)

	require.NoError(t, poller.Start(context.Background()))
	require.True(t, poller.Running())
	require.ErrorIs(t, poller.Start(context.Background()), ErrPollerAlreadyRunning)

	// The startup cycle runs before Start returns.
	require.GreaterOrEqual(t, syncer.convCalls.Load(), int64(1))
	require.GreaterOrEqual(t, syncer.threadCalls.Load(), int64(1))

	require.NoError(t, poller.Stop())
	require.False(t, poller.Running())
	require.ErrorIs(t, poller.Stop(), ErrPollerNotRunning)
}

func TestPollerStartSurfacesFirstCycleFailure(t *testing.T) {
	syncer := &fakeSyncer{convErr: errors.New("unreachable")}
	poller := newFastPoller(20*time.Millisecond, syncer)

	err := poller.Start(context.Background())
	require.Error(t, err)
	require.False(t, poller.Running())
}

func TestPollerTicksPeriodically(t *testing.T) {
	syncer := &fakeSyncer{}
	poller := newFastPoller(10*time.Millisecond, syncer)

	require.NoError(t, poller.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, poller.Stop())

	require.Greater(t, syncer.convCalls.Load(), int64(2))
}

func TestPollerSkipsOverlappingTicks(t *testing.T) {
	// Each cycle takes several intervals, so ticks fire while a cycle
	// is in flight and must be dropped, not queued.
	syncer := &fakeSyncer{delay: 50 * time.Millisecond}
	poller := newFastPoller(10*time.Millisecond, syncer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, poller.Start(ctx))
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, poller.Stop())

	require.LessOrEqual(t, syncer.convCalls.Load(), int64(4))
}

func TestPollerRefreshNowCoalesces(t *testing.T) {
	syncer := &fakeSyncer{}
	poller := NewPoller(PollerConfig{Interval: time.Hour}, syncer)

	require.NoError(t, poller.Start(context.Background()))
	startup := syncer.convCalls.Load()

	poller.RefreshNow()
	poller.RefreshNow()
	poller.RefreshNow()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, poller.Stop())

	extra := syncer.convCalls.Load() - startup
	require.GreaterOrEqual(t, extra, int64(1))
	require.LessOrEqual(t, extra, int64(2))
}

func TestPollerIntervalClamped(t *testing.T) {
	poller := NewPoller(PollerConfig{Interval: time.Millisecond}, &fakeSyncer{})
	require.Equal(t, MinPollInterval, poller.interval)

	poller = NewPoller(PollerConfig{}, &fakeSyncer{})
	require.Equal(t, DefaultPollInterval, poller.interval)
}
