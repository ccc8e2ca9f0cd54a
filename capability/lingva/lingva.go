// Package lingva implements the translation capability against a Lingva
// Translate instance. Single-shot only; no streaming, no model download.
package lingva

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lingodom/lingodom/capability"
)

// DefaultBaseURL is the public Lingva instance.
const DefaultBaseURL = "https://lingva.ml"

// Config holds instance settings.
type Config struct {
	// BaseURL of the Lingva instance. Default: DefaultBaseURL.
	BaseURL string `yaml:"base_url"`
	// Timeout is the per-request timeout. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// Client overrides the HTTP client (tests).
	Client *http.Client `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
}

// Factory creates Lingva-backed translation sessions.
type Factory struct {
	cfg Config
}

// New creates a Factory.
func New(cfg Config) *Factory {
	cfg.applyDefaults()
	return &Factory{cfg: cfg}
}

// Availability reports whether the pair can be served.
func (f *Factory) Availability(_ context.Context, p capability.Pair) (capability.State, error) {
	if p.Target == "" {
		return capability.Unavailable, nil
	}
	return capability.Available, nil
}

// Create opens a session for the pair.
func (f *Factory) Create(_ context.Context, p capability.Pair, _ capability.CreateOptions) (capability.Session, error) {
	if p.Target == "" {
		return nil, capability.ErrUnavailable
	}
	src := p.Source
	if src == "" {
		src = "auto"
	}
	return &session{cfg: f.cfg, source: src, target: p.Target}, nil
}

type session struct {
	cfg    Config
	source string
	target string
	closed atomic.Bool
}

func (s *session) Destroy() { s.closed.Store(true) }

// Translate calls GET /api/v1/{source}/{target}/{text}.
func (s *session) Translate(ctx context.Context, text string) (string, error) {
	if s.closed.Load() {
		return "", capability.ErrSessionClosed
	}

	u := fmt.Sprintf("%s/api/v1/%s/%s/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.PathEscape(s.source), url.PathEscape(s.target), url.PathEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("lingva: new request: %w", err)
	}

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lingva: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("lingva: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		Translation string `json:"translation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("lingva: decode response: %w", err)
	}
	return out.Translation, nil
}
