package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"slidecast/internal/config"
)

// ChromeEngine drives a headless Chrome process through the DevTools
// protocol. One engine owns one browser process; every Page is a tab within
// that process.
type ChromeEngine struct {
	execPath        string
	noSandbox       bool
	protocolTimeout time.Duration

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeEngine builds an engine from configuration. Launch must be called
// before any other method.
func NewChromeEngine(cfg *config.Config) *ChromeEngine {
	e := &ChromeEngine{protocolTimeout: 30 * time.Second}
	if cfg != nil {
		e.execPath = cfg.Browser.ExecPath
		e.noSandbox = cfg.Browser.NoSandbox
		if cfg.Browser.ProtocolTimeout > 0 {
			e.protocolTimeout = time.Duration(cfg.Browser.ProtocolTimeout) * time.Second
		}
	}
	return e
}

// Launch spawns the Chrome process and waits for the DevTools handshake.
func (e *ChromeEngine) Launch(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("force-color-profile", "srgb"),
	)
	if e.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if e.execPath != "" {
		opts = append(opts, chromedp.ExecPath(e.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	launchCtx, cancel := context.WithTimeout(browserCtx, e.protocolTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// Running an empty task list forces the process to start so launch
	// failures surface here instead of on the first capture.
	if err := chromedp.Run(launchCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	e.allocCancel = allocCancel
	e.browserCtx = browserCtx
	e.browserCancel = browserCancel
	return nil
}

// Connected probes the browser with a cheap protocol round trip.
func (e *ChromeEngine) Connected() bool {
	if e.browserCtx == nil {
		return false
	}
	select {
	case <-e.browserCtx.Done():
		return false
	default:
	}

	probeCtx, cancel := context.WithTimeout(e.browserCtx, e.protocolTimeout)
	defer cancel()
	err := chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := target.GetTargets().Do(ctx)
		return err
	}))
	return err == nil
}

// NewPage opens a fresh tab sized to the requested viewport.
func (e *ChromeEngine) NewPage(ctx context.Context, width, height int) (Page, error) {
	if e.browserCtx == nil {
		return nil, fmt.Errorf("browser not launched")
	}

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)

	setupCtx, cancel := context.WithTimeout(tabCtx, e.protocolTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(setupCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	return &chromePage{ctx: tabCtx, cancel: tabCancel, timeout: e.protocolTimeout}, nil
}

// Close tears down the browser process and its allocator.
func (e *ChromeEngine) Close() error {
	var err error
	if e.browserCtx != nil {
		err = chromedp.Cancel(e.browserCtx)
	}
	if e.browserCancel != nil {
		e.browserCancel()
		e.browserCancel = nil
	}
	if e.allocCancel != nil {
		e.allocCancel()
		e.allocCancel = nil
	}
	e.browserCtx = nil
	return err
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions against the tab under the protocol timeout, honoring
// the caller's context for early cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) SetContent(ctx context.Context, html string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	}))
}

func (p *chromePage) Evaluate(ctx context.Context, expression string) error {
	return p.run(ctx, chromedp.Evaluate(expression, nil))
}

func (p *chromePage) Screenshot(ctx context.Context, format string, quality int) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormat(format)).
			WithCaptureBeyondViewport(false)
		if format == "jpeg" {
			params = params.WithQuality(int64(quality))
		}
		var err error
		buf, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

var _ Engine = (*ChromeEngine)(nil)
