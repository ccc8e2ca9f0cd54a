// Package engine translates a live HTML document in place and keeps it
// translated as the document changes. It owns the translation lifecycle:
// language-pair negotiation, the initial full-document pass, incremental
// passes driven by document mutations, and full restoration on disable.
//
// The engine is a consumer of two contracts: dom.Document for the tree and
// capability.Factory for the translation provider. It performs each
// translation exactly once per attempt; retry policy belongs to the
// provider.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/lingodom/lingodom/cache"
	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/classify"
	"github.com/lingodom/lingodom/dom"
)

// Engine drives in-place translation of one document.
type Engine struct {
	doc     *dom.Document
	factory capability.Factory
	cfg     Config

	cache   *cache.Cache
	markers *classify.Markers
	cls     *classify.Classifier
	orig    *originals
	echo    *echo

	// gen is bumped by every Enable and Disable; slow paths compare their
	// captured generation before committing results.
	gen atomic.Uint64

	mu        sync.Mutex
	sess      capability.Session
	target    string
	source    string
	active    bool
	sub       *dom.Subscription
	watchDone chan struct{}
}

// New creates an Engine over doc using factory for translations. factory may
// be nil; Enable then fails with capability.ErrUnsupported.
func New(doc *dom.Document, factory capability.Factory, cfg Config) *Engine {
	cfg.applyDefaults()
	markers := classify.NewMarkers()
	return &Engine{
		doc:     doc,
		factory: factory,
		cfg:     cfg,
		cache:   cache.New(),
		markers: markers,
		cls:     classify.New(cfg.Classify, markers),
		orig:    newOriginals(),
		echo:    newEcho(),
	}
}

// EnableOptions parameterises one Enable call.
type EnableOptions struct {
	// Target is the language to translate into (BCP 47, e.g. "es").
	Target string
	// Source is the page language. Empty means auto-detect.
	Source string
	// OnProgress receives download and translation progress. May be nil.
	OnProgress ProgressFunc
	// Save persists Target through the configured Store after the first
	// pass completes.
	Save bool
	// Silent suppresses the OnTranslated notification. Used when restoring
	// a previously saved language at startup.
	Silent bool
}

// Enable translates the document to opts.Target and starts watching for
// mutations. Calling Enable with a new target while active switches
// languages: the document is restored to its originals first, then
// retranslated, so text is never translated twice over.
func (e *Engine) Enable(ctx context.Context, opts EnableOptions) error {
	if e.factory == nil {
		return capability.ErrUnsupported
	}
	if _, err := language.Parse(opts.Target); err != nil {
		return fmt.Errorf("engine: invalid target language %q: %w", opts.Target, err)
	}
	if opts.Source != "" {
		if _, err := language.Parse(opts.Source); err != nil {
			return fmt.Errorf("engine: invalid source language %q: %w", opts.Source, err)
		}
	}

	gen := e.gen.Add(1)
	prog := newProgress(opts.OnProgress)

	source := opts.Source
	if source == "" {
		// On a language switch the page text is already translated, so
		// detection would report the old target. The known source wins.
		e.mu.Lock()
		if e.active {
			source = e.source
		}
		e.mu.Unlock()
	}
	if source == "" && e.cfg.Detect != nil {
		source = e.cfg.Detect(e.sampleText(400))
	}
	if source != "" && source == opts.Target {
		e.cfg.Logger.Info("engine: document already in target language", "target", opts.Target)
		prog.finish(PhaseTranslating)
		return nil
	}

	sess, err := e.openSession(ctx, capability.Pair{Source: source, Target: opts.Target}, prog)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.gen.Load() != gen {
		e.mu.Unlock()
		sess.Destroy()
		return nil
	}
	prev := e.sess
	switching := e.active && e.target != opts.Target
	e.sess = sess
	e.target = opts.Target
	e.source = source
	e.active = true
	e.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}
	if switching {
		// Put originals back before retranslating so the new pass never
		// sees text already rendered in the previous target.
		e.restore(false)
		e.markers.ResetMismatched(opts.Target)
		e.clearInFlightMarks()
	}

	e.startWatcher()

	stats := e.runPass(ctx, sess, opts.Target, source, prog, "enable")

	if e.gen.Load() != gen || ctx.Err() != nil {
		return ctx.Err()
	}
	prog.finish(PhaseTranslating)

	e.cfg.Logger.Info("engine: pass complete",
		"target", opts.Target, "source", source,
		"text_nodes", stats.textNodes.Load(), "attr_nodes", stats.attrNodes.Load(),
		"cache_hits", stats.cacheHits.Load(), "failures", stats.failures.Load())

	if opts.Save && e.cfg.Store != nil {
		if err := e.cfg.Store.SaveLanguage(ctx, opts.Target); err != nil {
			e.cfg.Logger.Warn("engine: save language", "error", err)
		}
	}
	if !opts.Silent && e.cfg.OnTranslated != nil {
		e.cfg.OnTranslated(opts.Target)
	}
	return nil
}

// openSession negotiates availability and creates a session, driving the
// download when the pair is supported but not yet present.
func (e *Engine) openSession(ctx context.Context, pair capability.Pair, prog *progress) (capability.Session, error) {
	state, err := e.factory.Availability(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("engine: availability: %w", err)
	}

	switch state {
	case capability.Unavailable:
		return nil, capability.ErrUnavailable

	case capability.Available:
		sess, err := e.factory.Create(ctx, pair, capability.CreateOptions{})
		if err != nil {
			return nil, fmt.Errorf("engine: create session: %w", err)
		}
		return sess, nil

	case capability.Downloadable, capability.Downloading:
		// The download wait is soft: when it elapses, the engine proceeds and
		// lets the first translation calls block on the provider instead.
		if dp, ok := e.factory.(capability.DownloadProgresser); ok && dp.SupportsDownloadProgress() {
			cctx, cancel := context.WithTimeout(ctx, e.cfg.DownloadWait)
			defer cancel()
			sess, err := e.factory.Create(cctx, pair, capability.CreateOptions{
				OnDownloadProgress: func(pct int) { prog.set(PhaseDownloading, pct) },
			})
			if err == nil {
				return sess, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if cctx.Err() == nil {
				return nil, fmt.Errorf("engine: download: %w", err)
			}
			e.cfg.Logger.Warn("engine: download wait elapsed, proceeding",
				"wait", e.cfg.DownloadWait, "error", err)
			sess, err = e.factory.Create(ctx, pair, capability.CreateOptions{})
			if err != nil {
				return nil, fmt.Errorf("engine: create session: %w", err)
			}
			return sess, nil
		}

		// No progress reporting: create, then probe with a tiny translation
		// until the model answers or the probe window closes.
		sess, err := e.factory.Create(ctx, pair, capability.CreateOptions{})
		if err != nil {
			return nil, fmt.Errorf("engine: create session: %w", err)
		}
		if err := e.probeReady(ctx, sess); err != nil {
			if ctx.Err() != nil {
				sess.Destroy()
				return nil, ctx.Err()
			}
			e.cfg.Logger.Warn("engine: probe window elapsed, proceeding", "error", err)
		}
		return sess, nil
	}
	return nil, fmt.Errorf("engine: unknown availability state %q", state)
}

func (e *Engine) probeReady(ctx context.Context, sess capability.Session) error {
	deadline := time.Now().Add(e.cfg.ProbeWait)
	for {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeInterval*4)
		_, err := sess.Translate(pctx, "ok")
		cancel()
		if err == nil {
			return nil
		}
		if capability.IsCancellation(err) && ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("engine: model not ready after %s: %w", e.cfg.ProbeWait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.ProbeInterval):
		}
	}
}

// Disable stops watching, restores every translated node to its original
// content, and releases the session.
func (e *Engine) Disable(ctx context.Context) error {
	e.gen.Add(1)

	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil
	}
	e.active = false
	sess := e.sess
	e.sess = nil
	e.target = ""
	e.source = ""
	e.mu.Unlock()

	e.stopWatcher()
	if sess != nil {
		sess.Destroy()
	}

	e.restore(true)
	e.markers.ResetAll()
	e.orig.reset()
	e.echo.reset()

	if e.cfg.Store != nil {
		if err := e.cfg.Store.ClearLanguage(ctx); err != nil {
			e.cfg.Logger.Warn("engine: clear language", "error", err)
		}
	}
	if e.cfg.OnTranslated != nil {
		e.cfg.OnTranslated("")
	}
	return nil
}

// Refresh re-runs a full pass over the document with the active session.
// No-op when the engine is not active.
func (e *Engine) Refresh(ctx context.Context, onProgress ProgressFunc) error {
	e.mu.Lock()
	if !e.active || e.sess == nil {
		e.mu.Unlock()
		return nil
	}
	sess, target, source := e.sess, e.target, e.source
	e.mu.Unlock()

	prog := newProgress(onProgress)
	e.runPass(ctx, sess, target, source, prog, "refresh")
	prog.finish(PhaseTranslating)
	return ctx.Err()
}

// Close releases the session and stops the watcher without restoring the
// document. For one-shot use where the translated tree is the product.
func (e *Engine) Close() {
	e.gen.Add(1)

	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.active = false
	e.mu.Unlock()

	e.stopWatcher()
	if sess != nil {
		sess.Destroy()
	}
}

// Active reports whether the engine currently holds a translation session.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Target returns the active target language, or "".
func (e *Engine) Target() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// restore writes originals back into the document. When removeMarkers is
// set, engine-owned attributes are stripped from every touched element.
func (e *Engine) restore(removeMarkers bool) {
	text, attrs := e.orig.snapshot()
	for n, v := range text {
		if e.doc.IsAttached(n) {
			e.writeText(n, v)
		}
	}
	for el, m := range attrs {
		if !e.doc.IsAttached(el) {
			continue
		}
		for name, v := range m {
			e.writeAttr(el, name, v)
		}
	}
	if removeMarkers {
		for _, el := range e.markers.Elements() {
			if e.doc.IsAttached(el) {
				e.doc.RemoveAttr(el, classify.AttrLang)
				e.doc.RemoveAttr(el, classify.AttrAttrsLang)
			}
		}
	}
}

// clearInFlightMarks strips "translating" marker attributes left behind by
// jobs of a superseded pass. Those jobs unwind their own marks when their
// session dies, but that may happen after the new pass has already scanned
// for eligible nodes.
func (e *Engine) clearInFlightMarks() {
	for _, el := range e.markers.Elements() {
		if !e.doc.IsAttached(el) {
			continue
		}
		if v, ok := e.doc.Attr(el, classify.AttrLang); ok && v == classify.StateTranslating {
			e.doc.RemoveAttr(el, classify.AttrLang)
		}
		if v, ok := e.doc.Attr(el, classify.AttrAttrsLang); ok && v == classify.StateTranslating {
			e.doc.RemoveAttr(el, classify.AttrAttrsLang)
		}
	}
}

// sampleText gathers up to limit bytes of eligible body text for language
// detection.
func (e *Engine) sampleText(limit int) string {
	var b strings.Builder
	e.doc.WalkText(e.doc.Body(), func(n *html.Node) bool {
		if n.Parent != nil && e.cls.Excluded(e.doc, n.Parent) {
			return true
		}
		t := strings.TrimSpace(e.doc.Text(n))
		if t == "" {
			return true
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
		return b.Len() < limit
	})
	s := b.String()
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
