package browser

import (
	"context"
)

// Engine abstracts the headless browser process the pool owns. The production
// implementation drives Chrome through chromedp; tests substitute a fake.
type Engine interface {
	// Launch starts the browser process. It must be safe to call again after
	// Close when the pool restarts.
	Launch(ctx context.Context) error
	// Connected reports whether the browser process is still responding.
	Connected() bool
	// NewPage opens one tab with the given viewport.
	NewPage(ctx context.Context, width, height int) (Page, error)
	// Close tears down the browser process. Errors are advisory; the pool
	// treats close as best-effort.
	Close() error
}

// Page is one browser tab. All calls apply the engine's protocol timeout so a
// wedged tab cannot stall a render job indefinitely.
type Page interface {
	Navigate(ctx context.Context, url string) error
	SetContent(ctx context.Context, html string) error
	Evaluate(ctx context.Context, expression string) error
	Screenshot(ctx context.Context, format string, quality int) ([]byte, error)
	Close() error
}
