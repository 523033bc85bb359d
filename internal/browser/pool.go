package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/metrics"
	"slidecast/internal/services"
)

// Identifiable pool failures. Both are tagged with services.ErrUnavailable so
// callers can tell "try again later" from bad input.
var (
	ErrPoolClosed    = errors.New("session pool is shut down")
	ErrPoolUnhealthy = errors.New("session pool is unhealthy")
)

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Size    int `json:"size"`
	Free    int `json:"free"`
	Busy    int `json:"busy"`
	Waiting int `json:"waiting"`
}

type waiterResult struct {
	session *Session
	err     error
}

type waiter struct {
	ch chan waiterResult // buffered; delivery never blocks the pool

	// abandoned marks a waiter whose Acquire call was cancelled. Set under
	// the pool mutex; abandoned waiters are skipped at dispatch time.
	abandoned bool
}

// Pool owns one browser process and a fixed set of tab sessions. Acquire
// hands out free sessions immediately and queues callers FIFO otherwise.
// Crash recovery replaces single sessions on release failure and restarts
// the whole browser when the process disconnects.
type Pool struct {
	engine         Engine
	logger         *slog.Logger
	size           int
	width          int
	height         int
	opTimeout      time.Duration
	healthInterval time.Duration

	mu           sync.Mutex
	initialized  bool
	initializing bool
	initDone     chan struct{}
	initErr      error
	restarting   bool
	closed       bool
	generation   uint64
	free         []*Session
	busy         map[string]*Session
	waiters      []*waiter
	healthStop   chan struct{}
}

// NewPool builds a pool from configuration. A nil engine selects the Chrome
// implementation; tests inject fakes.
func NewPool(cfg *config.Config, engine Engine, logger *slog.Logger) *Pool {
	if engine == nil {
		engine = NewChromeEngine(cfg)
	}
	p := &Pool{
		engine:         engine,
		logger:         logging.NewComponentLogger(logger, "pool"),
		size:           cfg.Browser.PoolSize,
		width:          cfg.Browser.ViewportWidth,
		height:         cfg.Browser.ViewportHeight,
		opTimeout:      time.Duration(cfg.Browser.ProtocolTimeout) * time.Second,
		healthInterval: time.Duration(cfg.Browser.HealthCheckInterval) * time.Second,
		busy:           make(map[string]*Session),
	}
	if p.size < 1 {
		p.size = 1
	}
	return p
}

// Initialize launches the browser and pre-creates the full session set.
// Concurrent calls collapse into one in-flight initialization; a failed
// initialization leaves the pool uninitialized for a future retry.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return services.Wrap(services.ErrUnavailable, "pool", "initialize", "", ErrPoolClosed)
	}
	if p.initialized || p.restarting {
		p.mu.Unlock()
		return nil
	}
	if p.initializing {
		done := p.initDone
		p.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		p.mu.Lock()
		err := p.initErr
		p.mu.Unlock()
		return err
	}
	p.initializing = true
	p.initDone = make(chan struct{})
	p.mu.Unlock()

	return p.runInitialize(ctx)
}

// runInitialize performs the launch and records the outcome. The caller must
// have set the initializing guard.
func (p *Pool) runInitialize(ctx context.Context) error {
	err := p.launchAndPopulate(ctx)

	p.mu.Lock()
	p.initializing = false
	p.initErr = err
	if err == nil {
		p.initialized = true
		p.startHealthLoopLocked()
		if !p.restarting {
			// During a restart the preserved waiters must be re-queued
			// first; Restart dispatches once ordering is restored.
			p.dispatchLocked()
		}
	}
	done := p.initDone
	p.mu.Unlock()
	close(done)
	return err
}

func (p *Pool) launchAndPopulate(ctx context.Context) error {
	if err := p.engine.Launch(ctx); err != nil {
		return services.Wrap(services.ErrEngine, "pool", "launch", "", err)
	}

	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	sessions := make([]*Session, 0, p.size)
	for i := 0; i < p.size; i++ {
		page, err := p.engine.NewPage(ctx, p.width, p.height)
		if err != nil {
			for _, s := range sessions {
				s.dispose()
			}
			_ = p.engine.Close()
			return services.Wrap(services.ErrEngine, "pool", "create session", "", err)
		}
		sessions = append(sessions, newSession(page, p.width, p.height, gen))
	}

	p.mu.Lock()
	p.free = sessions
	p.mu.Unlock()

	p.logger.Info("session pool initialized", logging.Int("size", p.size))
	return nil
}

// Acquire returns a free session or queues the caller FIFO until one is
// released. The wait itself is unbounded; callers impose deadlines through
// ctx. During a restart the caller queues and is either satisfied by the
// fresh pool or rejected if recovery fails.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, services.Wrap(services.ErrUnavailable, "pool", "acquire", "", ErrPoolClosed)
		}
		if p.initialized || p.restarting {
			break // proceed under this lock
		}
		if p.initializing {
			done := p.initDone
			p.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		p.mu.Unlock()
		if err := p.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	// While a restart is in flight callers always queue so preserved
	// waiters keep their place at the head of the line.
	if n := len(p.free); n > 0 && !p.restarting {
		s := p.free[0]
		p.free = p.free[1:]
		s.state = stateBusy
		p.busy[s.id] = s
		p.mu.Unlock()
		return s, nil
	}

	w := &waiter{ch: make(chan waiterResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.session, res.err
	case <-ctx.Done():
		p.mu.Lock()
		w.abandoned = true
		p.mu.Unlock()
		// A session may have been handed over concurrently; return it.
		select {
		case res := <-w.ch:
			if res.session != nil {
				p.Release(context.Background(), res.session)
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool. The session is reset to a blank
// state first; a failed or timed-out reset disposes it and creates a
// replacement so a broken tab never re-enters the free list. If replacement
// creation also fails, the head waiter is rejected rather than left to
// starve and an asynchronous full restart begins.
func (p *Pool) Release(ctx context.Context, s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	delete(p.busy, s.id)
	if p.closed || s.state == stateDisposed || s.gen != p.generation {
		// Shutdown or a restart swept this session while the job held it;
		// the fresh pool is already fully populated, so nothing comes back.
		// Claiming the disposed state under the lock keeps the tab close
		// on exactly one goroutine.
		claimed := s.state != stateDisposed
		s.state = stateDisposed
		p.mu.Unlock()
		if claimed {
			_ = s.page.Close()
		}
		return
	}
	gen := s.gen
	p.mu.Unlock()

	// The reset deliberately ignores job cancellation: a cancelled job
	// still hands back a healthy tab. Only the protocol timeout bounds it.
	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opTimeout)
	err := s.reset(resetCtx)
	cancel()
	if err == nil {
		p.handOff(s)
		return
	}

	p.logger.Warn("session reset failed, replacing",
		logging.String(logging.FieldSessionID, s.id), logging.Error(err))
	s.dispose()

	pageCtx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
	page, nerr := p.engine.NewPage(pageCtx, p.width, p.height)
	cancel()
	if nerr == nil {
		p.handOff(newSession(page, p.width, p.height, gen))
		return
	}

	p.logger.Error("session replacement failed, restarting pool", logging.Error(nerr))
	p.mu.Lock()
	head := p.popWaiterLocked()
	p.mu.Unlock()
	if head != nil {
		head.ch <- waiterResult{err: services.Wrap(services.ErrUnavailable, "pool", "release", "", ErrPoolUnhealthy)}
	}
	go func() {
		if rerr := p.Restart(context.Background()); rerr != nil {
			p.logger.Error("pool restart failed", logging.Error(rerr))
		}
	}()
}

// handOff gives a healthy session to the head waiter, bypassing the free
// list, or parks it as free when nobody waits.
func (p *Pool) handOff(s *Session) {
	p.mu.Lock()
	if p.closed || s.gen != p.generation {
		p.mu.Unlock()
		s.dispose()
		return
	}
	if w := p.popWaiterLocked(); w != nil {
		s.state = stateBusy
		p.busy[s.id] = s
		p.mu.Unlock()
		w.ch <- waiterResult{session: s}
		return
	}
	s.state = stateFree
	p.free = append(p.free, s)
	p.mu.Unlock()
}

// popWaiterLocked removes and returns the head waiter, skipping abandoned
// entries. Caller holds the mutex.
func (p *Pool) popWaiterLocked() *waiter {
	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if !w.abandoned {
			return w
		}
	}
	return nil
}

// dispatchLocked pairs free sessions with queued waiters. Caller holds the
// mutex.
func (p *Pool) dispatchLocked() {
	for len(p.free) > 0 {
		w := p.popWaiterLocked()
		if w == nil {
			return
		}
		s := p.free[0]
		p.free = p.free[1:]
		s.state = stateBusy
		p.busy[s.id] = s
		w.ch <- waiterResult{session: s}
	}
}

// Restart is the crash-recovery path: close the old browser, relaunch, and
// satisfy as many preserved waiters as the fresh pool allows. A restart
// already in progress makes this call a no-op. If relaunch fails every
// preserved waiter is rejected with the underlying error.
func (p *Pool) Restart(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return services.Wrap(services.ErrUnavailable, "pool", "restart", "", ErrPoolClosed)
	}
	if p.restarting {
		p.mu.Unlock()
		return nil
	}
	p.restarting = true
	p.initializing = true
	p.initDone = make(chan struct{})
	p.generation++
	preserved := p.waiters
	p.waiters = nil
	stale := p.free
	p.free = nil
	for _, s := range p.busy {
		stale = append(stale, s)
	}
	p.busy = make(map[string]*Session)
	// Marking the sweep under the lock lets a concurrent Release see it;
	// the tabs are closed below without racing that Release.
	for _, s := range stale {
		s.state = stateDisposed
	}
	p.initialized = false
	p.mu.Unlock()

	p.logger.Warn("restarting session pool", logging.Int("preserved_waiters", len(preserved)))
	metrics.PoolRestartsTotal.Inc()

	for _, s := range stale {
		_ = s.page.Close()
	}
	_ = p.engine.Close()

	err := p.runInitialize(ctx)

	p.mu.Lock()
	p.restarting = false
	if err == nil {
		// Preserved waiters keep their original order ahead of anyone who
		// queued during the restart.
		p.waiters = append(preserved, p.waiters...)
		p.dispatchLocked()
		p.mu.Unlock()
		return nil
	}
	// Reject everyone: the preserved waiters and anyone who queued while
	// the restart was in flight. Nobody is left hanging on a dead pool.
	late := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	// The buffered channel absorbs sends to waiters whose Acquire call has
	// already been cancelled, so no abandoned check is needed here.
	wrapped := services.Wrap(services.ErrUnavailable, "pool", "restart", "", err)
	for _, w := range append(preserved, late...) {
		w.ch <- waiterResult{err: wrapped}
	}
	return wrapped
}

// startHealthLoopLocked starts the periodic disconnect check once. Caller
// holds the mutex.
func (p *Pool) startHealthLoopLocked() {
	if p.healthStop != nil || p.healthInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	p.healthStop = stop
	go p.healthLoop(stop)
}

// healthLoop triggers a restart when the browser reports itself
// disconnected. The restart runs fire-and-forget so a slow recovery never
// blocks the check interval; its errors are logged, not propagated.
func (p *Pool) healthLoop(stop chan struct{}) {
	ticker := time.NewTicker(p.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			skip := !p.initialized || p.restarting || p.closed
			p.mu.Unlock()
			if skip {
				continue
			}
			if p.engine.Connected() {
				continue
			}
			p.logger.Warn("browser disconnected, triggering restart")
			go func() {
				if err := p.Restart(context.Background()); err != nil {
					p.logger.Error("health-triggered restart failed", logging.Error(err))
				}
			}()
		}
	}
}

// Shutdown stops health checks, rejects all queued waiters, closes every
// session and the browser process, and marks the pool closed. It is
// idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.initialized = false
	pending := p.waiters
	p.waiters = nil
	sessions := p.free
	p.free = nil
	for _, s := range p.busy {
		sessions = append(sessions, s)
	}
	p.busy = make(map[string]*Session)
	for _, s := range sessions {
		s.state = stateDisposed
	}
	stop := p.healthStop
	p.healthStop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	wrapped := services.Wrap(services.ErrUnavailable, "pool", "shutdown", "", ErrPoolClosed)
	for _, w := range pending {
		w.ch <- waiterResult{err: wrapped}
	}
	for _, s := range sessions {
		_ = s.page.Close()
	}
	_ = p.engine.Close()

	p.logger.Info("session pool shut down")
}

// Stats reports current occupancy. The waiting count covers only
// continuations not yet fulfilled.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	waiting := 0
	for _, w := range p.waiters {
		if !w.abandoned {
			waiting++
		}
	}
	return Stats{
		Size:    p.size,
		Free:    len(p.free),
		Busy:    len(p.busy),
		Waiting: waiting,
	}
}
