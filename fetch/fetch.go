// Package fetch acquires page HTML for translation. A plain HTTP GET covers
// most static sites; when the response looks like a script shell with no
// real content, the fetch escalates to a headless browser so client-rendered
// pages arrive with their text in place.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lingodom/lingodom/dom"
)

// Result is the outcome of one fetch.
type Result struct {
	HTML       []byte
	Hash       string
	StatusCode int
	// Rendered reports that a headless browser produced the HTML.
	Rendered bool
}

// Fetcher performs HTTP GETs with optional browser escalation.
type Fetcher struct {
	client  *http.Client
	ua      string
	logger  *slog.Logger
	browser *browserRenderer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithBrowser enables headless-browser escalation for pages whose plain
// HTML carries no usable text.
func WithBrowser() Option {
	return func(f *Fetcher) { f.browser = newBrowserRenderer() }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; lingodom/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs pageURL. If the body is insufficient for translation and
// browser escalation is enabled, the page is rendered headlessly instead.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	// Cap the read to 10MB to prevent runaway downloads.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	res := &Result{
		HTML:       body,
		Hash:       dom.HashHTML(body),
		StatusCode: resp.StatusCode,
	}

	if !IsSufficient(body) && f.browser != nil {
		f.logger.Info("fetch: escalating to headless browser", "url", pageURL, "size", len(body))
		rendered, err := f.browser.render(ctx, pageURL)
		if err != nil {
			f.logger.Warn("fetch: browser render failed, keeping plain HTML", "url", pageURL, "error", err)
			return res, nil
		}
		res.HTML = rendered
		res.Hash = dom.HashHTML(rendered)
		res.Rendered = true
	}

	f.logger.Debug("fetch: fetched",
		"url", pageURL, "status", resp.StatusCode,
		"size", len(res.HTML), "rendered", res.Rendered)
	return res, nil
}

// Close releases the headless browser, if one was launched.
func (f *Fetcher) Close() {
	if f.browser != nil {
		f.browser.close()
	}
}
