package browser

import (
	"context"
	"errors"
	"sync"
)

// FakeEngine is an in-memory Engine used by pool and daemon tests. Failure
// modes are toggled per call site; all counters are safe for concurrent use.
type FakeEngine struct {
	mu            sync.Mutex
	launched      bool
	launches      int
	pagesOpened   int
	FailLaunch    bool
	FailNewPage   bool
	Disconnected  bool
	NewPageErrors int // fail this many NewPage calls, then succeed

	launchStarted chan struct{}
	launchGate    chan struct{}
}

// NewFakeEngine returns a healthy fake engine.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

// GateLaunch makes subsequent Launch calls signal started and then block
// until gate is closed. Tests use it to hold a restart in flight.
func (e *FakeEngine) GateLaunch(started, gate chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launchStarted = started
	e.launchGate = gate
}

func (e *FakeEngine) Launch(ctx context.Context) error {
	e.mu.Lock()
	started := e.launchStarted
	gate := e.launchGate
	e.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailLaunch {
		return errors.New("fake launch failure")
	}
	e.launched = true
	e.Disconnected = false
	e.launches++
	return nil
}

func (e *FakeEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launched && !e.Disconnected
}

func (e *FakeEngine) NewPage(ctx context.Context, width, height int) (Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.launched {
		return nil, errors.New("fake engine not launched")
	}
	if e.FailNewPage {
		return nil, errors.New("fake page failure")
	}
	if e.NewPageErrors > 0 {
		e.NewPageErrors--
		return nil, errors.New("fake page failure")
	}
	e.pagesOpened++
	return &FakePage{}, nil
}

func (e *FakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.launched = false
	return nil
}

// Launches reports how many times Launch succeeded.
func (e *FakeEngine) Launches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.launches
}

// PagesOpened reports how many tabs were created.
func (e *FakeEngine) PagesOpened() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pagesOpened
}

// Drop simulates a browser process crash.
func (e *FakeEngine) Drop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Disconnected = true
}

// FakePage records interactions for assertions. Failure toggles mirror the
// calls a real tab can fail.
type FakePage struct {
	mu           sync.Mutex
	closed       bool
	FailNavigate bool
	FailCapture  bool
	Navigations  []string
	Contents     []string
	Evaluations  []string
	Captures     int
	CaptureData  []byte
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailNavigate {
		return errors.New("fake navigate failure")
	}
	p.Navigations = append(p.Navigations, url)
	return nil
}

func (p *FakePage) SetContent(ctx context.Context, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Contents = append(p.Contents, html)
	return nil
}

func (p *FakePage) Evaluate(ctx context.Context, expression string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Evaluations = append(p.Evaluations, expression)
	return nil
}

func (p *FakePage) Screenshot(ctx context.Context, format string, quality int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCapture {
		return nil, errors.New("fake capture failure")
	}
	p.Captures++
	if p.CaptureData != nil {
		return p.CaptureData, nil
	}
	return []byte("frame"), nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether the tab was closed.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Break makes every subsequent Navigate fail, simulating a dead tab.
func (p *FakePage) Break() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FailNavigate = true
}

// NewStubSession wraps a page in a session without a pool, for tests that
// exercise session consumers directly.
func NewStubSession(page Page, width, height int) *Session {
	return newSession(page, width, height, 0)
}

var (
	_ Engine = (*FakeEngine)(nil)
	_ Page   = (*FakePage)(nil)
)
