package encoding

import "context"

// OutputSpec describes one video output: where it goes and how the incoming
// frame stream is interpreted.
type OutputSpec struct {
	Path        string
	Width       int
	Height      int
	FPS         int
	FrameFormat string
}

// Encoder turns an ordered stream of still frames into a video file.
type Encoder interface {
	Start(ctx context.Context, spec OutputSpec) (Stream, error)
}

// Stream is a single running encode. Frames must be written in presentation
// order by one goroutine; WriteFrame blocks while the encoder is busy, which
// is the only flow control the pipeline needs. Exactly one of Finish or
// Abort must be called.
type Stream interface {
	WriteFrame(frame []byte) error
	Finish() error
	Abort()
}
