// Package browser renders a URL in an isolated headless Chrome session and
// returns the resulting document. Every call launches its own browser
// process with a throwaway profile and tears both down before returning.
package browser

import (
	"context"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a Renderer.
type Options struct {
	// ExecPath is the Chrome/Chromium binary. Empty lets chromedp search PATH.
	ExecPath string
	// WaitSelector is the CSS selector that marks a rendered response.
	WaitSelector string
	// WaitTimeout bounds the wait for WaitSelector.
	WaitTimeout time.Duration
	// SettleDelay is slept when WaitSelector never appears, before the page
	// is read anyway.
	SettleDelay time.Duration
	// Timeout bounds the whole session, including browser startup.
	Timeout time.Duration
	// TempDir is the parent directory of per-session profiles. Empty uses os.TempDir.
	TempDir string
	// UserAgent overrides the browser user agent when set.
	UserAgent string
}

// DefaultOptions returns the settings used against the zoning service.
func DefaultOptions() Options {
	return Options{
		WaitSelector: "pre",
		WaitTimeout:  10 * time.Second,
		SettleDelay:  5 * time.Second,
		Timeout:      45 * time.Second,
	}
}

// Renderer fetches pages through headless Chrome. It holds no session state,
// so one Renderer may serve concurrent callers; each call pays the full
// browser startup cost.
type Renderer struct {
	opts Options
	log  *zap.Logger
}

// New creates a Renderer. Zero-valued options fall back to DefaultOptions.
func New(opts Options, log *zap.Logger) *Renderer {
	def := DefaultOptions()
	if opts.WaitSelector == "" {
		opts.WaitSelector = def.WaitSelector
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{opts: opts, log: log}
}

// Fetch renders url and returns the outer HTML of the document.
func (r *Renderer) Fetch(ctx context.Context, url string) ([]byte, error) {
	profile, err := os.MkdirTemp(r.opts.TempDir, "zoning-chrome-*")
	if err != nil {
		return nil, eris.Wrap(err, "browser: create profile dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(profile); rmErr != nil {
			r.log.Warn("browser: remove profile dir", zap.String("dir", profile), zap.Error(rmErr))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions(profile)...)
	defer cancelAlloc()

	// cancelBrowser closes the browser it started and waits for the process
	// to exit, or returns at once if it never started.
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	// An empty Run starts the browser bound to browserCtx so that the
	// shorter-lived contexts below only scope individual actions.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, eris.Wrap(err, "browser: start")
	}

	if err := chromedp.Run(browserCtx, chromedp.Navigate(url)); err != nil {
		return nil, eris.Wrap(err, "browser: navigate")
	}

	waited := waitOrSettle(browserCtx, r.opts.WaitTimeout, r.opts.SettleDelay, func(waitCtx context.Context) error {
		return chromedp.Run(waitCtx, chromedp.WaitReady(r.opts.WaitSelector, chromedp.ByQuery))
	})
	if waited != nil {
		return nil, eris.Wrap(waited, "browser: wait for render")
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, eris.Wrap(err, "browser: read document")
	}

	r.log.Debug("browser: page rendered",
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return []byte(html), nil
}

func (r *Renderer) allocatorOptions(profile string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.UserDataDir(profile),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	if r.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.opts.UserAgent))
	}
	return opts
}

// waitOrSettle runs wait with a waitTimeout deadline. If wait fails for any
// reason other than the parent context ending, it sleeps settle instead and
// reports success: the caller reads whatever the page holds by then. Only
// cancellation of ctx is returned as an error.
func waitOrSettle(ctx context.Context, waitTimeout, settle time.Duration, wait func(context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	err := wait(waitCtx)
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
