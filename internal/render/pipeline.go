package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/encoding"
	"slidecast/internal/logging"
	"slidecast/internal/metrics"
	"slidecast/internal/services"
)

// Pipeline drives one acquired session through a job's timeline, capturing
// a frame per sample instant and writing it to the encoder stream in
// presentation order.
type Pipeline struct {
	logger       *slog.Logger
	frameFormat  string
	frameQuality int
}

// NewPipeline builds a pipeline using the configured frame format.
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		frameFormat:  cfg.Render.FrameFormat,
		frameQuality: cfg.Render.FrameQuality,
	}
}

// Run paints and captures every sampled frame. Frames are written strictly
// in increasing-time order from this single goroutine; the encoder stream's
// blocking writes provide the only pacing. Returns the number of frames
// written, which on error counts only fully written frames.
func (p *Pipeline) Run(ctx context.Context, job *Job, session *browser.Session, stream encoding.Stream) (int, error) {
	page := session.Page()
	if err := page.SetContent(ctx, composeDocument(job)); err != nil {
		return 0, services.Wrap(services.ErrEngine, "pipeline", "set content", "", err)
	}

	total := int(job.Duration * float64(job.FPS))
	if total < 1 {
		// A job shorter than one frame interval still yields one frame.
		total = 1
	}

	for i := 0; i < total; i++ {
		t := float64(i) / float64(job.FPS)
		script, err := frameScript(job, t)
		if err != nil {
			return i, services.Wrap(services.ErrValidation, "pipeline", "frame styles", "", err)
		}
		if err := page.Evaluate(ctx, script); err != nil {
			return i, services.Wrap(services.ErrEngine, "pipeline", fmt.Sprintf("apply styles at t=%.3f", t), "", err)
		}
		frame, err := page.Screenshot(ctx, p.frameFormat, p.frameQuality)
		if err != nil {
			return i, services.Wrap(services.ErrEngine, "pipeline", fmt.Sprintf("capture frame %d", i), "", err)
		}
		if err := stream.WriteFrame(frame); err != nil {
			return i, err
		}
		metrics.FramesCapturedTotal.Inc()
	}

	p.logger.Debug("frame capture complete",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int(logging.FieldFrame, total))
	return total, nil
}

type frameStyle struct {
	Opacity   float64 `json:"opacity"`
	Transform string  `json:"transform,omitempty"`
	Hidden    bool    `json:"hidden,omitempty"`
}

// frameScript renders the style-application call for one sample instant.
func frameScript(job *Job, t float64) (string, error) {
	styles := make(map[string]frameStyle, len(job.Layers))
	for i := range job.Layers {
		layer := &job.Layers[i]
		s := StyleAt(layer, t, job.Duration)
		styles[layer.ID] = frameStyle{Opacity: s.Opacity, Transform: s.Transform, Hidden: s.Hidden}
	}
	payload, err := json.Marshal(styles)
	if err != nil {
		return "", err
	}
	return "window.__slidecastApply(" + string(payload) + ")", nil
}
