package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Engine is the visual rendering tier: it turns a complete HTML document
// into paginated PDF bytes. Implementations may be unavailable (no browser
// installed, launch failed); callers fall back to the text tier.
type Engine interface {
	Available() bool
	RenderHTML(ctx context.Context, document string) ([]byte, error)
}

// BrowserOptions configures the headless browser engine.
type BrowserOptions struct {
	// Sessions bounds how many tabs may render concurrently.
	Sessions int
	// Timeout bounds a single render so one hung page cannot stall the
	// batch.
	Timeout time.Duration
}

// Browser renders HTML through a shared headless-Chrome process. One
// process is launched per batch; individual renders each get their own tab
// from a bounded slot pool and are always released, including on timeout.
type Browser struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	slots       chan struct{}
	timeout     time.Duration
	available   bool
	logger      *slog.Logger
}

// StartBrowser launches the headless browser and probes it with a blank
// navigation. Launch failure is not fatal: the returned engine reports
// itself unavailable and the batch degrades to text-only output.
func StartBrowser(ctx context.Context, opts BrowserOptions, logger *slog.Logger) *Browser {
	if opts.Sessions <= 0 {
		opts.Sessions = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		browserCtx:  browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		slots:       make(chan struct{}, opts.Sessions),
		timeout:     opts.Timeout,
		logger:      logger,
	}

	probeCtx, probeCancel := context.WithTimeout(browserCtx, opts.Timeout)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		logger.Warn("browser engine unavailable, falling back to text rendering for all messages", "err", err)
		b.Close()
		return b
	}

	b.available = true
	logger.Debug("browser engine ready", "sessions", opts.Sessions, "timeout", opts.Timeout)
	return b
}

func (b *Browser) Available() bool {
	return b.available
}

// RenderHTML prints the document to an A4 PDF in a fresh tab.
func (b *Browser) RenderHTML(ctx context.Context, document string) ([]byte, error) {
	if !b.available {
		return nil, fmt.Errorf("browser engine not available")
	}

	select {
	case b.slots <- struct{}{}:
		defer func() { <-b.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, b.timeout)
	defer timeoutCancel()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, document).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}

	return pdf, nil
}

// Close shuts the browser process down. Safe to call on an unavailable
// engine and more than once.
func (b *Browser) Close() {
	b.available = false
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
