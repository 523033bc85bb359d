package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/encoding"
	"slidecast/internal/logging"
	"slidecast/internal/metrics"
	"slidecast/internal/preflight"
)

// Renderer orchestrates one job end to end: validate references, acquire a
// session, start the encoder, run the capture pipeline, and finalize.
type Renderer struct {
	pool     *browser.Pool
	encoder  encoding.Encoder
	policy   preflight.Policy
	pipeline *Pipeline
	logger   *slog.Logger

	outputDir string
	container string
}

// NewRenderer wires the renderer from configuration. A nil encoder selects
// the configured ffmpeg binary; tests inject fakes.
func NewRenderer(cfg *config.Config, pool *browser.Pool, encoder encoding.Encoder, logger *slog.Logger) *Renderer {
	if encoder == nil {
		encoder = encoding.NewFFmpeg(
			encoding.WithBinary(cfg.FFmpegBinary()),
			encoding.WithCodec(cfg.Encoder.Codec),
			encoding.WithPixelFormat(cfg.Encoder.PixelFormat),
		)
	}
	return &Renderer{
		pool:      pool,
		encoder:   encoder,
		policy:    preflight.NewPolicy(cfg),
		pipeline:  NewPipeline(cfg, logger),
		logger:    logging.NewComponentLogger(logger, "renderer"),
		outputDir: cfg.Paths.OutputDir,
		container: cfg.Encoder.Container,
	}
}

// Render executes one job and returns the output location. Validation
// failures never touch the pool. Engine and encoder failures abort the job,
// remove any partial output, and recycle the session through Release.
func (r *Renderer) Render(ctx context.Context, job *Job) (Result, error) {
	started := time.Now()
	metrics.RenderJobsInFlight.Inc()
	defer metrics.RenderJobsInFlight.Dec()

	result, err := r.render(ctx, job)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.RenderJobsTotal.WithLabelValues(status).Inc()
	metrics.RenderJobDuration.Observe(time.Since(started).Seconds())
	return result, err
}

func (r *Renderer) render(ctx context.Context, job *Job) (Result, error) {
	if err := job.Validate(); err != nil {
		return Result{}, err
	}
	for _, ref := range job.References() {
		if err := r.policy.CheckReference(ref); err != nil {
			return Result{}, err
		}
	}

	logger := r.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSlideID, job.SlideID),
	)

	session, err := r.pool.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer r.pool.Release(ctx, session)

	outputPath := r.outputPath(job)
	stream, err := r.encoder.Start(ctx, encoding.OutputSpec{
		Path:        outputPath,
		Width:       job.Width,
		Height:      job.Height,
		FPS:         job.FPS,
		FrameFormat: r.pipeline.frameFormat,
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("render started",
		logging.String(logging.FieldOutput, outputPath),
		logging.Float64("duration", job.Duration),
		logging.Int("fps", job.FPS))

	frames, err := r.pipeline.Run(ctx, job, session, stream)
	if err != nil {
		stream.Abort()
		r.removePartial(outputPath, logger)
		logger.Error("render aborted", logging.Int(logging.FieldFrame, frames), logging.Error(err))
		return Result{}, err
	}

	if err := stream.Finish(); err != nil {
		r.removePartial(outputPath, logger)
		logger.Error("encoder finalization failed", logging.Error(err))
		return Result{}, err
	}

	result := Result{
		OutputPath: outputPath,
		FrameCount: frames,
		Duration:   float64(frames) / float64(job.FPS),
	}
	logger.Info("render complete",
		logging.String(logging.FieldOutput, result.OutputPath),
		logging.Int("frames", result.FrameCount))
	return result, nil
}

// outputPath is deterministic per job so resubmission overwrites rather
// than accumulating files.
func (r *Renderer) outputPath(job *Job) string {
	container := strings.TrimSpace(job.Format)
	if container == "" {
		container = r.container
	}
	name := job.ID
	if name == "" {
		name = job.SlideID
	}
	return filepath.Join(r.outputDir, fmt.Sprintf("%s.%s", name, container))
}

func (r *Renderer) removePartial(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial output",
			logging.String(logging.FieldOutput, path), logging.Error(err))
	}
}
