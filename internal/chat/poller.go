package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keta432/medichat/internal/logging"
)

var (
	// ErrPollerAlreadyRunning is returned by Start when the poller has
	// already been started.
	ErrPollerAlreadyRunning = errors.New("poller already running")
	// ErrPollerNotRunning is returned by Stop when the poller is not
	// running.
	ErrPollerNotRunning = errors.New("poller not running")
)

// DefaultPollInterval is the tick interval used when the configuration
// does not set one.
const DefaultPollInterval = 3 * time.Second

// MinPollInterval is the floor below which configured intervals are
// clamped.
const MinPollInterval = 500 * time.Millisecond

// Syncer is the unit of work a poller tick runs. Background ticks pass
// background=true so the syncer can swallow transient failures instead
// of surfacing them.
type Syncer interface {
	SyncConversations(ctx context.Context, background bool) error
	SyncSelected(ctx context.Context, background bool) error
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval time.Duration
}

// Poller drives the periodic refresh cycle: every tick it re-fetches
// the conversation list and the selected thread. Ticks never overlap;
// if a cycle is still in flight when the next tick fires, the tick is
// skipped rather than queued.
type Poller struct {
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	interval time.Duration
	syncer   Syncer
	forceCh  chan struct{}
	inFlight chan struct{}
	logger   zerolog.Logger
}

// NewPoller creates a poller over the given syncer.
func NewPoller(cfg PollerConfig, syncer Syncer) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{
		interval: interval,
		syncer:   syncer,
		forceCh:  make(chan struct{}, 1),
		inFlight: make(chan struct{}, 1),
		logger:   logging.Component("poller"),
	}
}

// Start launches the polling loop. The first cycle runs immediately in
// the foreground so startup failures reach the caller; subsequent
// cycles run in the background until Stop or context cancellation.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrPollerAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.mu.Unlock()

	if err := p.runCycle(loopCtx, false); err != nil {
		p.mu.Lock()
		p.running = false
		p.cancel = nil
		p.mu.Unlock()
		cancel()
		return err
	}

	p.wg.Add(1)
	go p.runLoop(loopCtx)

	p.logger.Debug().Dur("interval", p.interval).Msg("poller started")
	return nil
}

// Stop cancels the polling loop and waits for the in-flight cycle, if
// any, to finish.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()

	p.logger.Debug().Msg("poller stopped")
	return nil
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshNow requests an immediate background cycle without waiting for
// the next tick. Requests made while one is already queued coalesce.
func (p *Poller) RefreshNow() {
	select {
	case p.forceCh <- struct{}{}:
	default:
	}
}

func (p *Poller) runLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.backgroundCycle(ctx)
		case <-p.forceCh:
			p.backgroundCycle(ctx)
		}
	}
}

// backgroundCycle runs one refresh cycle unless one is already in
// flight, in which case the tick is dropped.
func (p *Poller) backgroundCycle(ctx context.Context) {
	select {
	case p.inFlight <- struct{}{}:
	default:
		p.logger.Debug().Msg("poll cycle still in flight, skipping tick")
		return
	}
	defer func() { <-p.inFlight }()

	// Background failures are the syncer's to log; the loop keeps
	// ticking regardless.
	_ = p.runSyncs(ctx, true)
}

func (p *Poller) runCycle(ctx context.Context, background bool) error {
	p.inFlight <- struct{}{}
	defer func() { <-p.inFlight }()
	return p.runSyncs(ctx, background)
}

func (p *Poller) runSyncs(ctx context.Context, background bool) error {
	if err := p.syncer.SyncConversations(ctx, background); err != nil {
		return err
	}
	return p.syncer.SyncSelected(ctx, background)
}
