// Package llm implements the translation capability against an
// OpenAI-compatible chat-completions API (OpenAI, Groq, Ollama, any
// compatible gateway). It supports incremental delivery via SSE streaming
// and bounded retry on rate limiting; the consuming engine stays
// single-attempt.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lingodom/lingodom/capability"
)

// Config holds provider settings.
type Config struct {
	// BaseURL is the API base, e.g. "https://api.groq.com/openai/v1".
	BaseURL string `yaml:"base_url"`
	// APIKey is the bearer token. Empty for local providers.
	APIKey string `yaml:"api_key"`
	// Model is the model identifier.
	Model string `yaml:"model"`
	// Timeout is the per-request timeout. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries bounds retries on 429/5xx. Default: 3.
	MaxRetries int `yaml:"max_retries"`
	// Client overrides the HTTP client (tests).
	Client *http.Client `yaml:"-"`
	// Logger overrides the default slog logger.
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Factory creates LLM-backed translation sessions.
type Factory struct {
	cfg Config
}

// New creates a Factory.
func New(cfg Config) *Factory {
	cfg.applyDefaults()
	return &Factory{cfg: cfg}
}

// Availability reports whether the pair can be served. A remote model needs
// no download step: any non-empty target is available.
func (f *Factory) Availability(_ context.Context, p capability.Pair) (capability.State, error) {
	if p.Target == "" {
		return capability.Unavailable, nil
	}
	return capability.Available, nil
}

// SupportsDownloadProgress reports false: there is no model download.
func (f *Factory) SupportsDownloadProgress() bool { return false }

// Create opens a session for the pair.
func (f *Factory) Create(_ context.Context, p capability.Pair, _ capability.CreateOptions) (capability.Session, error) {
	if p.Target == "" {
		return nil, capability.ErrUnavailable
	}
	return &session{cfg: f.cfg, pair: p}, nil
}

type session struct {
	cfg    Config
	pair   capability.Pair
	closed atomic.Bool
}

func (s *session) Destroy() { s.closed.Store(true) }

func (s *session) systemPrompt() string {
	src := s.pair.Source
	if src == "" {
		src = "the source language"
	}
	return fmt.Sprintf(
		"You are a translation engine. Translate the user's text from %s to %s. "+
			"Preserve punctuation and format specifiers exactly. "+
			"Return only the translation, no explanations.", src, s.pair.Target)
}

// Translate performs a single-shot translation with bounded retry on 429
// and 5xx responses.
func (s *session) Translate(ctx context.Context, text string) (string, error) {
	if s.closed.Load() {
		return "", capability.ErrSessionClosed
	}

	body, err := buildChatRequest(s.cfg.Model, s.systemPrompt(), text, false)
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if s.closed.Load() {
			return "", capability.ErrSessionClosed
		}
		respBody, status, err := s.post(ctx, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if !backoff(ctx, attempt) {
				return "", ctx.Err()
			}
			continue
		}

		switch {
		case status == http.StatusTooManyRequests:
			delay := parseRetryDelay(respBody)
			s.cfg.Logger.Warn("llm: rate limited", "wait", delay, "attempt", attempt+1)
			lastErr = fmt.Errorf("llm: rate limited (429)")
			if !sleep(ctx, delay) {
				return "", ctx.Err()
			}
		case status >= 500:
			lastErr = fmt.Errorf("llm: server error %d", status)
			if !backoff(ctx, attempt) {
				return "", ctx.Err()
			}
		case status != http.StatusOK:
			return "", fmt.Errorf("llm: status %d: %s", status, truncate(string(respBody), 300))
		default:
			return extractContent(respBody)
		}
	}
	return "", fmt.Errorf("llm: exhausted %d retries: %w", s.cfg.MaxRetries, lastErr)
}

// TranslateStream translates via SSE, emitting each content delta as it
// arrives. Not retried: a failed stream is the caller's cue to fall back.
func (s *session) TranslateStream(ctx context.Context, text string, emit func(chunk string)) error {
	if s.closed.Load() {
		return capability.ErrSessionClosed
	}

	body, err := buildChatRequest(s.cfg.Model, s.systemPrompt(), text, true)
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: new request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("llm: stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llm: stream status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	return readSSE(resp.Body, func(delta string) {
		if s.closed.Load() {
			return
		}
		emit(delta)
	})
}

func (s *session) endpoint() string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (s *session) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
}

func (s *session) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("llm: new request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("llm: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func buildChatRequest(model, system, user string, stream bool) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		Stream:      stream,
	}
	return json.Marshal(req)
}

// extractContent pulls choices[0].message.content from a chat response.
func extractContent(body []byte) (string, error) {
	var resp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("llm: invalid response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llm: API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseRetryDelay extracts a provider-suggested retry delay from a 429 body,
// defaulting to 65s (60s window plus buffer).
func parseRetryDelay(body []byte) time.Duration {
	const fallback = 65 * time.Second

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fallback
	}
	for _, d := range errResp.Error.Details {
		if strings.Contains(d.Type, "RetryInfo") && d.RetryDelay != "" {
			v := strings.TrimSuffix(d.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}
	return fallback
}

func backoff(ctx context.Context, attempt int) bool {
	return sleep(ctx, time.Duration(math.Pow(2, float64(attempt)))*time.Second)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
