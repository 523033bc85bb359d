package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/encoding"
	"slidecast/internal/logging"
	"slidecast/internal/preflight"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

func newTestRenderer(t *testing.T, encoder encoding.Encoder, opts ...testsupport.ConfigOption) (*Renderer, *browser.FakeEngine, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)

	engine := browser.NewFakeEngine()
	pool := browser.NewPool(cfg, engine, logging.NewNop())
	t.Cleanup(pool.Shutdown)

	return NewRenderer(cfg, pool, encoder, logging.NewNop()), engine, cfg
}

func TestRendererCompletesJob(t *testing.T) {
	encoder := encoding.NewFakeEncoder()
	renderer, _, cfg := newTestRenderer(t, encoder)

	job := testJob()
	result, err := renderer.Render(context.Background(), job)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := filepath.Join(cfg.Paths.OutputDir, "job-1."+cfg.Encoder.Container)
	if result.OutputPath != want {
		t.Fatalf("output path %q, want %q", result.OutputPath, want)
	}
	if result.FrameCount != 10 {
		t.Fatalf("expected 10 frames, got %d", result.FrameCount)
	}
	if result.Duration != 1 {
		t.Fatalf("expected 1s rendered, got %v", result.Duration)
	}

	streams := encoder.Streams()
	if len(streams) != 1 {
		t.Fatalf("expected one encoder stream, got %d", len(streams))
	}
	if !streams[0].Finished() {
		t.Fatal("stream should be finalized")
	}
	if streams[0].Aborted() {
		t.Fatal("successful job must not abort the stream")
	}
}

func TestRendererReleasesSessionAfterJob(t *testing.T) {
	renderer, _, _ := newTestRenderer(t, encoding.NewFakeEncoder())

	if _, err := renderer.Render(context.Background(), testJob()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// The released session serves the next job without a second pool slot.
	if _, err := renderer.Render(context.Background(), testJob()); err != nil {
		t.Fatalf("second Render: %v", err)
	}
}

func TestRendererRejectsInvalidJobWithoutPool(t *testing.T) {
	renderer, engine, _ := newTestRenderer(t, encoding.NewFakeEncoder())

	job := testJob()
	job.Duration = 0
	if _, err := renderer.Render(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if engine.Launches() != 0 {
		t.Fatal("validation failures must not touch the pool")
	}
}

func TestRendererBlocksExternalReferences(t *testing.T) {
	renderer, engine, _ := newTestRenderer(t, encoding.NewFakeEncoder())

	job := testJob()
	job.MediaReference = "https://example.com/x.png"
	_, err := renderer.Render(context.Background(), job)
	if !errors.Is(err, preflight.ErrExternalBlocked) {
		t.Fatalf("expected external-blocked rejection, got %v", err)
	}
	if engine.Launches() != 0 {
		t.Fatal("rejected references must not touch the pool")
	}
}

func TestRendererAllowsExternalReferencesWhenEnabled(t *testing.T) {
	renderer, _, _ := newTestRenderer(t, encoding.NewFakeEncoder(), testsupport.WithExternalURLs(true))

	job := testJob()
	job.MediaReference = "https://example.com/x.png"
	if _, err := renderer.Render(context.Background(), job); err != nil {
		t.Fatalf("Render with external URLs enabled: %v", err)
	}
}

func TestRendererAcceptsMediaInsideAllowedDir(t *testing.T) {
	renderer, _, cfg := newTestRenderer(t, encoding.NewFakeEncoder())

	asset := filepath.Join(testsupport.MediaDir(cfg), "bg.png")
	testsupport.WriteFile(t, asset, 256)

	job := testJob()
	job.MediaReference = asset
	if _, err := renderer.Render(context.Background(), job); err != nil {
		t.Fatalf("Render with allowed local media: %v", err)
	}
}

func TestRendererAbortsAndCleansUpOnCaptureFailure(t *testing.T) {
	encoder := encoding.NewFakeEncoder()
	renderer, _, cfg := newTestRenderer(t, encoder)

	// Break the pooled tab's capture path ahead of the render.
	session, err := renderer.pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	session.Page().(*browser.FakePage).FailCapture = true
	renderer.pool.Release(context.Background(), session)

	// Pre-create the output so cleanup is observable.
	outputPath := filepath.Join(cfg.Paths.OutputDir, "job-1."+cfg.Encoder.Container)
	if err := os.WriteFile(outputPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	_, err = renderer.Render(context.Background(), testJob())
	if !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}

	streams := encoder.Streams()
	if len(streams) != 1 || !streams[0].Aborted() {
		t.Fatal("failed job must abort its encoder stream")
	}
	if _, err := os.Stat(outputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial output should be removed, stat err=%v", err)
	}
}

func TestRendererRemovesOutputOnFinalizationFailure(t *testing.T) {
	encoder := encoding.NewFakeEncoder()
	encoder.FailFinish = true
	renderer, _, cfg := newTestRenderer(t, encoder)

	outputPath := filepath.Join(cfg.Paths.OutputDir, "job-1."+cfg.Encoder.Container)
	if err := os.WriteFile(outputPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	if _, err := renderer.Render(context.Background(), testJob()); err == nil {
		t.Fatal("expected finalization failure")
	}
	if _, err := os.Stat(outputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output of failed encode should be removed, stat err=%v", err)
	}
}
