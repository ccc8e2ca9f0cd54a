package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/lingodom/lingodom/classify"
	"github.com/lingodom/lingodom/store"
)

// Config tunes the engine. The zero value is usable; applyDefaults fills in
// production settings.
type Config struct {
	// Concurrency bounds in-flight translation requests. Default: 3.
	Concurrency int `yaml:"concurrency"`
	// Pace is the delay after each translated item. Default: 10ms.
	Pace time.Duration `yaml:"pace"`
	// StreamThreshold is the text length (in bytes, trimmed) above which a
	// streaming-capable session delivers partial translations. Default: 150.
	StreamThreshold int `yaml:"stream_threshold"`
	// DebounceWindow batches document mutations before the engine reacts.
	// Default: 250ms.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// MaxBuffer flushes a mutation batch early once this many records
	// accumulate. Default: 1000.
	MaxBuffer int `yaml:"max_buffer"`
	// DownloadWait bounds session creation when the provider reports
	// download progress. Default: 15s.
	DownloadWait time.Duration `yaml:"download_wait"`
	// ProbeWait bounds the readiness probe loop for providers that cannot
	// report download progress. Default: 20s.
	ProbeWait time.Duration `yaml:"probe_wait"`
	// ProbeInterval is the delay between readiness probes. Default: 250ms.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// Classify tunes which nodes are translated.
	Classify classify.Config `yaml:"classify"`

	// Logger overrides the default slog logger.
	Logger *slog.Logger `yaml:"-"`
	// Store persists the chosen language and pass history. May be nil.
	Store Store `yaml:"-"`
	// Detect identifies the language of a text sample, returning an ISO
	// 639-1 code or "". Used when EnableOptions.Source is empty. May be nil.
	Detect func(text string) string `yaml:"-"`
	// OnTranslated is invoked after a full pass completes with the active
	// target language, and with "" after a revert. May be nil.
	OnTranslated func(lang string) `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.Pace <= 0 {
		c.Pace = 10 * time.Millisecond
	}
	if c.StreamThreshold <= 0 {
		c.StreamThreshold = 150
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 250 * time.Millisecond
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = 1000
	}
	if c.DownloadWait <= 0 {
		c.DownloadWait = 15 * time.Second
	}
	if c.ProbeWait <= 0 {
		c.ProbeWait = 20 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store persists engine state between sessions. *store.Store satisfies it.
type Store interface {
	SaveLanguage(ctx context.Context, lang string) error
	ClearLanguage(ctx context.Context) error
	LogPassAsync(p *store.Pass)
}
