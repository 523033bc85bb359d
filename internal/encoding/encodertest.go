package encoding

import (
	"context"
	"errors"
	"sync"
)

// FakeEncoder is an in-memory Encoder for pipeline and daemon tests.
type FakeEncoder struct {
	mu        sync.Mutex
	streams   []*FakeStream
	FailStart bool

	// WriteErrors makes each started stream fail after accepting this many
	// frames. Zero means writes always succeed.
	WriteErrors int
	FailFinish  bool
}

// NewFakeEncoder returns an encoder that accepts everything.
func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{}
}

func (e *FakeEncoder) Start(ctx context.Context, spec OutputSpec) (Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailStart {
		return nil, errors.New("fake encoder start failure")
	}
	s := &FakeStream{spec: spec, writeBudget: e.WriteErrors, failFinish: e.FailFinish}
	e.streams = append(e.streams, s)
	return s, nil
}

// Streams returns every stream started so far.
func (e *FakeEncoder) Streams() []*FakeStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakeStream(nil), e.streams...)
}

// FakeStream records frames for assertions.
type FakeStream struct {
	mu          sync.Mutex
	spec        OutputSpec
	frames      [][]byte
	finished    bool
	aborted     bool
	writeBudget int
	failFinish  bool
}

func (s *FakeStream) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeBudget > 0 && len(s.frames) >= s.writeBudget {
		return errors.New("fake encoder write failure")
	}
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return nil
}

func (s *FakeStream) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	if s.failFinish {
		return errors.New("fake encoder finish failure")
	}
	return nil
}

func (s *FakeStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Spec returns the output spec the stream was started with.
func (s *FakeStream) Spec() OutputSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// FrameCount reports how many frames were accepted.
func (s *FakeStream) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Frames returns the accepted frames in write order.
func (s *FakeStream) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Finished reports whether Finish was called.
func (s *FakeStream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Aborted reports whether Abort was called.
func (s *FakeStream) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

var (
	_ Encoder = (*FakeEncoder)(nil)
	_ Stream  = (*FakeStream)(nil)
)
