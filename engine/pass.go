package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/net/html"

	"github.com/lingodom/lingodom/cache"
	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/casepat"
	"github.com/lingodom/lingodom/classify"
	"github.com/lingodom/lingodom/runner"
	"github.com/lingodom/lingodom/store"
)

// passStats accumulates counters across one pass's workers.
type passStats struct {
	textNodes atomic.Int64
	attrNodes atomic.Int64
	cacheHits atomic.Int64
	failures  atomic.Int64
}

// runPass sweeps the whole document: every eligible text node, then every
// element with eligible attributes. Blocks until the pass finishes or ctx is
// cancelled.
func (e *Engine) runPass(ctx context.Context, sess capability.Session, target, source string, prog *progress, trigger string) *passStats {
	body := e.doc.Body()

	var textJobs []*html.Node
	e.doc.WalkText(body, func(n *html.Node) bool {
		if e.cls.EligibleText(e.doc, n, target) {
			textJobs = append(textJobs, n)
		}
		return true
	})

	var attrJobs []*html.Node
	e.doc.WalkElements(body, func(el *html.Node) bool {
		if e.cls.EligibleAttrs(e.doc, el, target) {
			attrJobs = append(attrJobs, el)
		}
		return true
	})

	return e.runJobs(ctx, sess, target, source, textJobs, attrJobs, prog, trigger)
}

// runJobs translates the given nodes with the configured worker budget.
// Text first: body copy is what the reader is waiting on.
func (e *Engine) runJobs(ctx context.Context, sess capability.Session, target, source string, textJobs, attrJobs []*html.Node, prog *progress, trigger string) *passStats {
	stats := &passStats{}
	started := time.Now()

	// Progress is weighted by source text length so one huge paragraph does
	// not jump the bar the same as a single word.
	var totalWeight, doneWeight atomic.Int64
	for _, n := range textJobs {
		totalWeight.Add(int64(len(strings.TrimSpace(e.doc.Text(n)))))
	}
	for _, el := range attrJobs {
		totalWeight.Add(int64(e.attrWeight(el)))
	}
	report := func(w int) {
		total := totalWeight.Load()
		if total == 0 {
			return
		}
		done := doneWeight.Add(int64(w))
		prog.set(PhaseTranslating, int(done*100/total))
	}

	opts := runner.Options{
		Concurrency: e.cfg.Concurrency,
		Pace:        e.cfg.Pace,
		Suppress:    capability.IsCancellation,
		Logger:      e.cfg.Logger,
	}

	runner.Run(ctx, textJobs, opts, func(ctx context.Context, n *html.Node) error {
		w := len(strings.TrimSpace(e.doc.Text(n)))
		err := e.translateTextNode(ctx, sess, n, target, source, stats)
		report(w)
		if err != nil {
			stats.failures.Add(1)
		}
		return err
	})

	runner.Run(ctx, attrJobs, opts, func(ctx context.Context, el *html.Node) error {
		w := e.attrWeight(el)
		err := e.translateAttrs(ctx, sess, el, target, source, stats)
		report(w)
		if err != nil {
			stats.failures.Add(1)
		}
		return err
	})

	if e.cfg.Store != nil && (len(textJobs) > 0 || len(attrJobs) > 0) {
		status := "completed"
		if ctx.Err() != nil {
			status = "cancelled"
		} else if stats.failures.Load() > 0 {
			status = "failed"
		}
		e.cfg.Store.LogPassAsync(&store.Pass{
			StartedAt: started,
			Duration:  time.Since(started),
			Source:    source,
			Target:    target,
			TextNodes: int(stats.textNodes.Load()),
			AttrNodes: int(stats.attrNodes.Load()),
			CacheHits: int(stats.cacheHits.Load()),
			Failures:  int(stats.failures.Load()),
			Trigger:   trigger,
			Status:    status,
		})
	}
	return stats
}

func (e *Engine) attrWeight(el *html.Node) int {
	w := 0
	for _, name := range classify.TranslatableAttrs {
		if v, ok := e.doc.Attr(el, name); ok {
			w += len(strings.TrimSpace(v))
		}
	}
	return w
}

// translateTextNode translates one text node in place. The captured original
// is the translation source, so a retry after a failed pass never feeds the
// engine's own partial output back to the capability. Leading and trailing
// whitespace of the original survives the rewrite; the casing pattern of the
// original is reapplied to the translation.
func (e *Engine) translateTextNode(ctx context.Context, sess capability.Session, n *html.Node, target, source string, stats *passStats) error {
	live := e.doc.Text(n)
	if strings.TrimSpace(live) == "" {
		return nil
	}
	src := e.orig.captureText(n, live)
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil
	}
	lead := src[:len(src)-len(strings.TrimLeftFunc(src, unicode.IsSpace))]
	trail := src[len(strings.TrimRightFunc(src, unicode.IsSpace)):]
	e.markers.Set(n, classify.StateTranslating)
	parent := n.Parent
	markParent := parent != nil && e.doc.SoleTextChild(n)
	if markParent {
		e.doc.SetAttr(parent, classify.AttrLang, classify.StateTranslating)
		e.markers.TrackElement(parent)
	}

	// Unwinds this job's in-progress marks. Conditional on the "translating"
	// state: a language switch may have already reset them, and a newer pass
	// may have written its own marks since.
	clear := func() {
		if e.markers.Get(n) == classify.StateTranslating {
			e.markers.Clear(n)
		}
		if markParent {
			if v, ok := e.doc.Attr(parent, classify.AttrLang); ok && v == classify.StateTranslating {
				e.doc.RemoveAttr(parent, classify.AttrLang)
			}
		}
	}

	pattern := casepat.Detect(trimmed)
	cctx := cache.Context{Source: source, Target: target, Scope: cache.ScopeText}

	raw, hit := e.cache.Get(trimmed, cctx)
	if hit {
		stats.cacheHits.Add(1)
	} else {
		var err error
		if ss, ok := sess.(capability.StreamingSession); ok && len(trimmed) >= e.cfg.StreamThreshold {
			raw, err = e.streamTranslate(ctx, ss, n, trimmed, pattern, lead, trail)
		} else {
			raw, err = sess.Translate(ctx, trimmed)
		}
		if err != nil {
			clear()
			return err
		}
		e.cache.Set(trimmed, raw, cctx)
	}

	if e.Target() != target {
		clear()
		return nil
	}

	e.writeText(n, lead+casepat.Apply(raw, pattern)+trail)
	e.markers.Set(n, target)
	if markParent {
		e.doc.SetAttr(parent, classify.AttrLang, target)
	}
	stats.textNodes.Add(1)
	return nil
}

// translateAttrs translates every non-empty translatable attribute on el.
func (e *Engine) translateAttrs(ctx context.Context, sess capability.Session, el *html.Node, target, source string, stats *passStats) error {
	e.doc.SetAttr(el, classify.AttrAttrsLang, classify.StateTranslating)
	e.markers.TrackElement(el)

	for _, name := range classify.TranslatableAttrs {
		live, ok := e.doc.Attr(el, name)
		if !ok {
			continue
		}
		if strings.TrimSpace(live) == "" {
			continue
		}

		// Translate the captured original: a retry after a mid-loop failure
		// must not re-translate an attribute already written.
		src := e.orig.captureAttr(el, name, live)
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		pattern := casepat.Detect(trimmed)
		cctx := cache.Context{
			Source: source, Target: target,
			Scope: cache.ScopeAttr, Attr: name,
		}

		raw, hit := e.cache.Get(trimmed, cctx)
		if hit {
			stats.cacheHits.Add(1)
		} else {
			var err error
			raw, err = sess.Translate(ctx, trimmed)
			if err != nil {
				e.clearAttrsMark(el)
				return err
			}
			e.cache.Set(trimmed, raw, cctx)
		}

		if e.Target() != target {
			e.clearAttrsMark(el)
			return nil
		}
		e.writeAttr(el, name, casepat.Apply(raw, pattern))
		stats.attrNodes.Add(1)
	}

	e.doc.SetAttr(el, classify.AttrAttrsLang, target)
	return nil
}

// clearAttrsMark removes el's attrs marker if it still reads "translating".
// A newer pass may have replaced it with a language tag; that stays.
func (e *Engine) clearAttrsMark(el *html.Node) {
	if v, ok := e.doc.Attr(el, classify.AttrAttrsLang); ok && v == classify.StateTranslating {
		e.doc.RemoveAttr(el, classify.AttrAttrsLang)
	}
}

// writeText records the write for the watcher before performing it. A write
// that changes nothing emits no mutation record, so the pending entry is
// unwound: left behind it would swallow a later page write of the same value.
func (e *Engine) writeText(n *html.Node, value string) {
	e.echo.wroteText(n, value)
	if !e.doc.SetText(n, value) {
		e.echo.dropLastText(n, value)
	}
}

func (e *Engine) writeAttr(el *html.Node, name, value string) {
	e.echo.wroteAttr(el, name, value)
	if !e.doc.SetAttr(el, name, value) {
		e.echo.dropLastAttr(el, name, value)
	}
}
