package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"slidecast/internal/browser"
	"slidecast/internal/config"
	"slidecast/internal/encoding"
	"slidecast/internal/logging"
	"slidecast/internal/services"
)

func testJob() *Job {
	return &Job{
		ID:       "job-1",
		SlideID:  "slide-1",
		Duration: 1,
		Width:    640,
		Height:   360,
		FPS:      10,
		Layers: []Layer{
			{
				ID:   "title",
				Kind: "text",
				Text: "Hello",
				X:    10, Y: 10, Width: 200, Height: 50,
				Entrance: &Animation{
					Kind:     AnimFade,
					Duration: 0.5,
					Easing:   "linear",
					Trigger:  Trigger{Kind: TriggerImmediate},
				},
			},
		},
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	return NewPipeline(&cfg, logging.NewNop())
}

func runPipeline(t *testing.T, job *Job, page *browser.FakePage) (*encoding.FakeStream, int, error) {
	t.Helper()
	session := browser.NewStubSession(page, job.Width, job.Height)
	stream, err := encoding.NewFakeEncoder().Start(context.Background(), encoding.OutputSpec{Path: "out.mp4", FPS: job.FPS})
	if err != nil {
		t.Fatalf("fake encoder start: %v", err)
	}
	frames, rerr := newTestPipeline(t).Run(context.Background(), job, session, stream)
	return stream.(*encoding.FakeStream), frames, rerr
}

func TestPipelineWritesEveryFrameInOrder(t *testing.T) {
	job := testJob()
	page := &browser.FakePage{}

	stream, frames, err := runPipeline(t, job, page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if frames != 10 {
		t.Fatalf("expected 10 frames for 1s at 10fps, got %d", frames)
	}
	if stream.FrameCount() != 10 {
		t.Fatalf("expected 10 frames in stream, got %d", stream.FrameCount())
	}
	if len(page.Contents) != 1 {
		t.Fatalf("document should be set once, got %d", len(page.Contents))
	}
	if len(page.Evaluations) != 10 {
		t.Fatalf("expected one style application per frame, got %d", len(page.Evaluations))
	}
	if !strings.Contains(page.Evaluations[0], "__slidecastApply") {
		t.Fatalf("style application should call the injected shim, got %q", page.Evaluations[0])
	}
}

func TestPipelineShortJobProducesOneFrame(t *testing.T) {
	job := testJob()
	job.Duration = 0.05
	job.FPS = 30
	page := &browser.FakePage{}

	stream, frames, err := runPipeline(t, job, page)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if frames != 1 {
		t.Fatalf("expected exactly one frame, got %d", frames)
	}
	if stream.FrameCount() != 1 {
		t.Fatalf("expected the frame written to the stream, got %d", stream.FrameCount())
	}
}

func TestPipelineCaptureFailureAbortsWithEngineError(t *testing.T) {
	job := testJob()
	page := &browser.FakePage{FailCapture: true}

	_, frames, err := runPipeline(t, job, page)
	if err == nil {
		t.Fatal("expected capture failure")
	}
	if !errors.Is(err, services.ErrEngine) {
		t.Fatalf("expected engine marker, got %v", err)
	}
	if frames != 0 {
		t.Fatalf("no frames should be counted, got %d", frames)
	}
}

func TestPipelineComposesLayersIntoDocument(t *testing.T) {
	job := testJob()
	job.MediaReference = "assets/bg.png"
	page := &browser.FakePage{}

	if _, _, err := runPipeline(t, job, page); err != nil {
		t.Fatalf("Run: %v", err)
	}

	doc := page.Contents[0]
	for _, want := range []string{`id="layer-title"`, "Hello", `src="assets/bg.png"`, "__slidecastApply"} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestComposeDocumentEscapesContent(t *testing.T) {
	job := testJob()
	job.Layers[0].Text = `<script>alert("x")</script>`

	doc := composeDocument(job)
	if strings.Contains(doc, `<script>alert`) {
		t.Fatal("layer text must be escaped")
	}
	if !strings.Contains(doc, "&lt;script&gt;") {
		t.Fatalf("expected escaped text in document:\n%s", doc)
	}
}
