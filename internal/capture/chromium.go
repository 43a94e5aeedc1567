// Package capture renders the /calendar page to PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "studycal/internal/log"
)

// Default viewport: a week grid with the 24 hour rows at 80px each plus the
// header, wide enough for seven columns.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 2040
	DefaultTimeoutSec = 30
)

var ErrNoURL = errors.New("capture: URL is required")

// Options defines parameters for one capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:3001/calendar?workspace=<id>".
	URL string

	// Width and Height are the viewport size. Zero means the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeoutSec.
	Timeout time.Duration

	// NoSandbox disables the Chromium sandbox, needed when running as root
	// inside containers.
	NoSandbox bool
}

// Capturer produces a PNG of a page.
type Capturer interface {
	CapturePNG(ctx context.Context, opts Options) ([]byte, error)
}

// Chromium is the chromedp-backed Capturer.
type Chromium struct{}

// CapturePNG starts a headless Chromium, navigates to opts.URL, waits for
// the page root to carry data-ready="true" and takes a full-page
// screenshot.
func (Chromium) CapturePNG(parentCtx context.Context, opts Options) ([]byte, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Let the last paint land.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	appLog.Info("calendar captured", "bytes", len(png), "elapsed", time.Since(started).String())
	return png, nil
}

// WritePNG captures opts.URL with c and writes the PNG to path.
func WritePNG(ctx context.Context, c Capturer, opts Options, path string) error {
	if path == "" {
		return errors.New("capture: output path is required")
	}
	png, err := c.CapturePNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
