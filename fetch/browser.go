package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// browserRenderer lazily launches one headless Chrome and renders pages
// through it. The browser lives for the lifetime of the Fetcher.
type browserRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

func newBrowserRenderer() *browserRenderer {
	return &browserRenderer{}
}

func (r *browserRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("fetch: launch chrome: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("fetch: connect: %w", err)
	}

	r.browser = b
	r.lnch = l
	return b, nil
}

// render navigates to pageURL in a stealth tab and returns the rendered
// outer HTML after load.
func (r *browserRenderer) render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("fetch: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("fetch: navigate %s: %w", pageURL, err)
	}
	// A load timeout is not fatal: whatever rendered so far is returned.
	_ = page.Context(navCtx).WaitLoad()

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("fetch: read DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

func (r *browserRenderer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}
