// Package capability defines the contract the translation engine consumes.
// A Factory negotiates language-pair availability and creates Sessions; a
// Session performs the actual translation. Concrete providers live in the
// llm and lingva subpackages; the engine never imports those directly.
package capability

import (
	"context"
	"errors"
)

// State is the availability of a language pair.
type State string

const (
	Available    State = "available"    // ready, a session can be created immediately
	Downloadable State = "downloadable" // supported, model not yet present
	Downloading  State = "downloading"  // download already in progress
	Unavailable  State = "unavailable"  // pair cannot be served
)

// Pair is a translation language pair. Source may be empty when the provider
// auto-detects the source language.
type Pair struct {
	Source string
	Target string
}

// CreateOptions carries optional hooks for session creation.
type CreateOptions struct {
	// OnDownloadProgress receives model download progress in percent when
	// the provider supports reporting it. May be nil.
	OnDownloadProgress func(percent int)
}

// Factory negotiates availability and creates sessions.
type Factory interface {
	Availability(ctx context.Context, p Pair) (State, error)
	Create(ctx context.Context, p Pair, opts CreateOptions) (Session, error)
}

// Session is a live translation session for one language pair.
type Session interface {
	// Translate performs a single-shot translation of text.
	Translate(ctx context.Context, text string) (string, error)
	// Destroy releases the session. Outstanding calls fail with
	// ErrSessionClosed.
	Destroy()
}

// StreamingSession is implemented by sessions that can deliver a translation
// incrementally. Consumers branch on this interface, not on feature probes.
type StreamingSession interface {
	Session
	// TranslateStream translates text and invokes emit for every partial
	// chunk as it arrives. The concatenation of all chunks is the full
	// translation.
	TranslateStream(ctx context.Context, text string, emit func(chunk string)) error
}

// DownloadProgresser is implemented by factories that can report model
// download progress through CreateOptions.OnDownloadProgress. Factories that
// do not implement it are polled with tiny probe translations instead.
type DownloadProgresser interface {
	SupportsDownloadProgress() bool
}

var (
	// ErrUnsupported means no translation capability is present at all.
	ErrUnsupported = errors.New("capability: no translation capability present")
	// ErrUnavailable means the requested language pair cannot be served.
	ErrUnavailable = errors.New("capability: language pair unavailable")
	// ErrSessionClosed means the session was destroyed while a call was in
	// flight. Expected during a language switch; callers suppress it.
	ErrSessionClosed = errors.New("capability: session destroyed")
)

// IsCancellation reports whether err is an expected interruption: a
// destroyed session or a cancelled context. Such errors are suppressed
// rather than logged.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
