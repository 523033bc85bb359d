package browser

import (
	"context"

	"github.com/google/uuid"
)

type sessionState int

const (
	stateFree sessionState = iota
	stateBusy
	stateDisposed
)

// Session is one reusable browser tab bound to a pool slot. It is owned by
// the pool and lent to exactly one render job at a time.
type Session struct {
	id     string
	page   Page
	width  int
	height int

	// gen is the pool generation the session was created under. A restart
	// bumps the pool's generation; sessions from an earlier one are swept,
	// never returned to the free list.
	gen uint64

	// state changes only inside the pool's bookkeeping or while the
	// session is exclusively held by one goroutine.
	state sessionState
}

func newSession(page Page, width, height int, gen uint64) *Session {
	return &Session{
		id:     uuid.NewString(),
		page:   page,
		width:  width,
		height: height,
		gen:    gen,
	}
}

// ID returns the session's identity, used in logs and stats.
func (s *Session) ID() string { return s.id }

// Page exposes the underlying tab for the capture pipeline.
func (s *Session) Page() Page { return s.page }

// Viewport returns the tab's fixed dimensions.
func (s *Session) Viewport() (width, height int) { return s.width, s.height }

// reset returns the tab to a blank state between jobs.
func (s *Session) reset(ctx context.Context) error {
	return s.page.Navigate(ctx, "about:blank")
}

func (s *Session) dispose() {
	if s.state == stateDisposed {
		return
	}
	s.state = stateDisposed
	_ = s.page.Close()
}
