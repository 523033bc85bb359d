package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slidecast/internal/browser"
	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

func newTestPool(t *testing.T, size int, engine *browser.FakeEngine) *browser.Pool {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPoolSize(size))
	cfg.Browser.ViewportWidth = 640
	cfg.Browser.ViewportHeight = 360
	pool := browser.NewPool(cfg, engine, logging.NewNop())
	t.Cleanup(pool.Shutdown)
	return pool
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestInitializeCreatesFullSessionSet(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 3, engine)

	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := engine.PagesOpened(); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}

	stats := pool.Stats()
	if stats.Free != 3 || stats.Busy != 0 || stats.Waiting != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// Idempotent: no second launch, no extra pages.
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if engine.Launches() != 1 {
		t.Fatalf("expected 1 launch, got %d", engine.Launches())
	}
}

func TestInitializeFailureLeavesPoolRetryable(t *testing.T) {
	engine := browser.NewFakeEngine()
	engine.FailLaunch = true
	pool := newTestPool(t, 2, engine)

	if err := pool.Initialize(context.Background()); err == nil {
		t.Fatal("expected launch failure")
	}

	engine.FailLaunch = false
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("retry Initialize: %v", err)
	}
	if stats := pool.Stats(); stats.Free != 2 {
		t.Fatalf("unexpected stats after retry: %+v", stats)
	}
}

func TestAcquireNeverExceedsPoolSize(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 2, engine)

	ctx := context.Background()
	a, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	b, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}

	stats := pool.Stats()
	if stats.Busy != 2 || stats.Free != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Free+stats.Busy != stats.Size {
		t.Fatalf("free+busy must equal size: %+v", stats)
	}

	// Third caller must wait.
	done := make(chan *browser.Session, 1)
	go func() {
		s, err := pool.Acquire(ctx)
		if err != nil {
			done <- nil
			return
		}
		done <- s
	}()
	waitFor(t, "third caller to queue", func() bool { return pool.Stats().Waiting == 1 })

	pool.Release(ctx, a)
	select {
	case s := <-done:
		if s == nil {
			t.Fatal("waiter received error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not satisfied after release")
	}

	pool.Release(ctx, b)
	if stats := pool.Stats(); stats.Busy != 1 || stats.Free != 1 {
		t.Fatalf("unexpected stats after releases: %+v", stats)
	}
}

func TestAcquireFIFOOrder(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	held, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	acquireAndHold := func(name string) chan *browser.Session {
		ch := make(chan *browser.Session, 1)
		go func() {
			s, err := pool.Acquire(ctx)
			if err != nil {
				ch <- nil
				return
			}
			record(name)
			ch <- s
		}()
		return ch
	}

	chA := acquireAndHold("a")
	waitFor(t, "a to queue", func() bool { return pool.Stats().Waiting == 1 })
	chB := acquireAndHold("b")
	waitFor(t, "b to queue", func() bool { return pool.Stats().Waiting == 2 })

	pool.Release(ctx, held)
	sA := <-chA
	if sA == nil {
		t.Fatal("a failed")
	}
	pool.Release(ctx, sA)
	sB := <-chB
	if sB == nil {
		t.Fatal("b failed")
	}
	pool.Release(ctx, sB)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected FIFO order [a b], got %v", order)
	}
}

func TestAcquireCancelRemovesWaiter(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	waitCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(waitCtx)
		errCh <- err
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	waitFor(t, "waiting count to drop", func() bool { return pool.Stats().Waiting == 0 })

	// The abandoned waiter must not swallow the released session.
	pool.Release(context.Background(), held)
	waitFor(t, "session back in free list", func() bool { return pool.Stats().Free == 1 })
}

func TestReleaseResetsSessionBeforeReuse(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	page := s.Page().(*browser.FakePage)

	pool.Release(ctx, s)
	waitFor(t, "release to finish", func() bool { return pool.Stats().Free == 1 })

	last := page.Navigations[len(page.Navigations)-1]
	if last != "about:blank" {
		t.Fatalf("expected blank reset navigation, got %q", last)
	}
}

func TestReleaseReplacesBrokenSession(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	page := s.Page().(*browser.FakePage)
	page.Break()

	pool.Release(ctx, s)
	waitFor(t, "replacement in free list", func() bool { return pool.Stats().Free == 1 })

	if !page.Closed() {
		t.Fatal("broken tab should be closed")
	}

	replacement, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire replacement: %v", err)
	}
	if replacement.ID() == s.ID() {
		t.Fatal("broken session must never return to the pool")
	}
	pool.Release(ctx, replacement)
}

func TestReplacementFailureRejectsHeadWaiterAndRestarts(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		errCh <- err
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	s.Page().(*browser.FakePage).Break()
	engine.NewPageErrors = 1 // replacement fails once; restart then succeeds

	pool.Release(ctx, s)

	select {
	case err := <-errCh:
		if !errors.Is(err, browser.ErrPoolUnhealthy) {
			t.Fatalf("expected pool-unhealthy rejection, got %v", err)
		}
		if !errors.Is(err, services.ErrUnavailable) {
			t.Fatalf("expected unavailable marker, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("head waiter left to starve")
	}

	// The asynchronous restart restores the full session count.
	waitFor(t, "restart to relaunch", func() bool { return engine.Launches() == 2 })
	waitFor(t, "pool capacity restored", func() bool {
		stats := pool.Stats()
		return stats.Free+stats.Busy == 1 && stats.Free == 1
	})
}

func TestConcurrentRestartLaunchesOnce(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 2, engine)
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	started := make(chan struct{}, 1)
	gate := make(chan struct{})
	engine.GateLaunch(started, gate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Restart(context.Background())
	}()
	<-started // first restart is now relaunching

	// A second trigger while the restart is in flight must be a no-op and
	// must not block behind the gated launch.
	if err := pool.Restart(context.Background()); err != nil {
		t.Fatalf("overlapping Restart: %v", err)
	}

	close(gate)
	if err := <-errCh; err != nil {
		t.Fatalf("Restart: %v", err)
	}

	// Initial launch plus exactly one relaunch.
	if got := engine.Launches(); got != 2 {
		t.Fatalf("expected 2 launches, got %d", got)
	}
	if stats := pool.Stats(); stats.Free != 2 {
		t.Fatalf("unexpected stats after restart: %+v", stats)
	}
}

func TestRestartPreservesWaiters(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	held, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_ = held // lost with the old browser during restart

	ch := make(chan *browser.Session, 1)
	go func() {
		s, err := pool.Acquire(ctx)
		if err != nil {
			ch <- nil
			return
		}
		ch <- s
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	if err := pool.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}

	select {
	case s := <-ch:
		if s == nil {
			t.Fatal("preserved waiter rejected by successful restart")
		}
		pool.Release(ctx, s)
	case <-time.After(2 * time.Second):
		t.Fatal("preserved waiter not satisfied")
	}
}

func TestFailedRestartRejectsPreservedWaiters(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		errCh <- err
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	engine.FailLaunch = true
	if err := pool.Restart(ctx); err == nil {
		t.Fatal("expected restart failure")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, services.ErrUnavailable) {
			t.Fatalf("expected unavailable rejection, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter left hanging after failed restart")
	}
}

func TestReleaseAfterRestartDoesNotGrowPool(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// The restart sweeps the held session while the job still runs on it.
	if err := pool.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if stats := pool.Stats(); stats.Free != 1 || stats.Busy != 0 {
		t.Fatalf("unexpected stats after restart: %+v", stats)
	}

	pool.Release(ctx, s)

	stats := pool.Stats()
	if stats.Free+stats.Busy != stats.Size {
		t.Fatalf("swept session re-entered the pool: %+v", stats)
	}
	// Initial population plus the restart's: no replacement was created.
	if got := engine.PagesOpened(); got != 2 {
		t.Fatalf("expected 2 pages opened, got %d", got)
	}

	fresh, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after restart: %v", err)
	}
	if fresh.ID() == s.ID() {
		t.Fatal("swept session must never be reissued")
	}
	pool.Release(ctx, fresh)
}

func TestReleaseWithCancelledJobContextKeepsSession(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	s, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A cancelled job must not make the reset fail and discard a healthy tab.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	pool.Release(cancelled, s)

	waitFor(t, "session back in free list", func() bool { return pool.Stats().Free == 1 })
	if got := engine.PagesOpened(); got != 1 {
		t.Fatalf("healthy tab was replaced, pages opened %d", got)
	}

	again, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire again: %v", err)
	}
	if again.ID() != s.ID() {
		t.Fatal("expected the same session back after a cancelled release")
	}
	pool.Release(context.Background(), again)
}

func TestFailedRestartAfterWaiterCancellation(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	if _, err := pool.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	waitCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(waitCtx)
		errCh <- err
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The cancelled waiter is still in the preserved snapshot; rejecting it
	// alongside the others must neither block nor panic.
	engine.FailLaunch = true
	if err := pool.Restart(ctx); err == nil {
		t.Fatal("expected restart failure")
	}
	if stats := pool.Stats(); stats.Waiting != 0 {
		t.Fatalf("unexpected waiters after failed restart: %+v", stats)
	}
}

func TestShutdownIsIdempotentAndRejectsWaiters(t *testing.T) {
	engine := browser.NewFakeEngine()
	pool := newTestPool(t, 1, engine)

	ctx := context.Background()
	s, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	page := s.Page().(*browser.FakePage)

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		errCh <- err
	}()
	waitFor(t, "waiter to queue", func() bool { return pool.Stats().Waiting == 1 })

	pool.Shutdown()
	pool.Shutdown() // second call must be a no-op

	if err := <-errCh; !errors.Is(err, browser.ErrPoolClosed) {
		t.Fatalf("expected pool-closed rejection, got %v", err)
	}
	if !page.Closed() {
		t.Fatal("busy session should be closed on shutdown")
	}
	if _, err := pool.Acquire(ctx); !errors.Is(err, browser.ErrPoolClosed) {
		t.Fatalf("acquire after shutdown: %v", err)
	}
	stats := pool.Stats()
	if stats.Free != 0 || stats.Busy != 0 || stats.Waiting != 0 {
		t.Fatalf("unexpected stats after shutdown: %+v", stats)
	}
}
