package encoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"slidecast/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the ffmpeg encoder.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithCodec overrides the default video codec.
func WithCodec(codec string) Option {
	return func(f *FFmpeg) {
		if codec != "" {
			f.codec = codec
		}
	}
}

// WithPixelFormat overrides the default pixel format.
func WithPixelFormat(format string) Option {
	return func(f *FFmpeg) {
		if format != "" {
			f.pixelFormat = format
		}
	}
}

// FFmpeg drives an ffmpeg subprocess over an image2pipe stdin stream.
type FFmpeg struct {
	binary      string
	codec       string
	pixelFormat string
}

// NewFFmpeg constructs an encoder using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg", codec: "libx264", pixelFormat: "yuv420p"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start spawns ffmpeg reading frames from stdin and writing spec.Path. The
// process inherits ctx: cancelling it kills the encode.
func (f *FFmpeg) Start(ctx context.Context, spec OutputSpec) (Stream, error) {
	if strings.TrimSpace(spec.Path) == "" {
		return nil, services.Wrap(services.ErrEncoder, "encoder", "start", "output path required", nil)
	}
	if spec.FPS <= 0 {
		return nil, services.Wrap(services.ErrEncoder, "encoder", "start", fmt.Sprintf("invalid frame rate %d", spec.FPS), nil)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(spec.FPS),
		"-i", "-",
		"-c:v", f.codec,
		"-pix_fmt", f.pixelFormat,
		"-y", spec.Path,
	}
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrEncoder, "encoder", "start", "stdin pipe", err)
	}
	tail := &stderrTail{}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrEncoder, "encoder", "start", "spawn "+f.binary, err)
	}

	return &ffmpegStream{cmd: cmd, stdin: stdin, stderr: tail, outputPath: spec.Path}, nil
}

type ffmpegStream struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stderr     *stderrTail
	outputPath string

	mu   sync.Mutex
	done bool
}

// WriteFrame pushes one encoded image to ffmpeg. The write blocks when the
// encoder falls behind, so the OS pipe buffer is the backpressure bound.
func (s *ffmpegStream) WriteFrame(frame []byte) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return services.Wrap(services.ErrEncoder, "encoder", "write frame", "stream already closed", nil)
	}
	s.mu.Unlock()

	if _, err := s.stdin.Write(frame); err != nil {
		return services.Wrap(services.ErrEncoder, "encoder", "write frame", s.stderr.Tail(), err)
	}
	return nil
}

// Finish closes the frame stream and waits for ffmpeg to flush the
// container. A nonzero exit surfaces the stderr tail in the error.
func (s *ffmpegStream) Finish() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	s.mu.Unlock()

	if err := s.stdin.Close(); err != nil {
		_ = s.cmd.Wait()
		return services.Wrap(services.ErrEncoder, "encoder", "finish", "close stdin", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return services.Wrap(services.ErrEncoder, "encoder", "finish", s.stderr.Tail(), err)
	}
	return nil
}

// Abort kills the encoder and removes the partial output file. Safe to call
// after Finish; it is then a no-op.
func (s *ffmpegStream) Abort() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	if err := os.Remove(s.outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}
}

// stderrTail keeps the last portion of the process stderr for diagnostics.
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

const stderrTailLimit = 4096

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailLimit {
		t.buf = t.buf[len(t.buf)-stderrTailLimit:]
	}
	return len(p), nil
}

// Tail returns the retained stderr output, trimmed.
func (t *stderrTail) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

var _ Encoder = (*FFmpeg)(nil)
