package engine

import (
	"context"

	"golang.org/x/net/html"

	"github.com/lingodom/lingodom/classify"
	"github.com/lingodom/lingodom/dom"
)

// startWatcher subscribes to document mutations and reacts to each batch
// with an incremental pass. Idempotent while a watcher is running.
func (e *Engine) startWatcher() {
	e.mu.Lock()
	if e.sub != nil {
		e.mu.Unlock()
		return
	}
	sub := e.doc.Subscribe(dom.SubscribeOptions{
		Window:     e.cfg.DebounceWindow,
		MaxBuffer:  e.cfg.MaxBuffer,
		AttrFilter: classify.TranslatableAttrs,
	})
	done := make(chan struct{})
	e.sub = sub
	e.watchDone = done
	e.mu.Unlock()

	go e.watchLoop(sub, done)
}

func (e *Engine) stopWatcher() {
	e.mu.Lock()
	sub, done := e.sub, e.watchDone
	e.sub = nil
	e.watchDone = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}

func (e *Engine) watchLoop(sub *dom.Subscription, done chan struct{}) {
	defer close(done)
	for batch := range sub.Batches() {
		e.handleBatch(batch)
	}
}

// handleBatch turns one mutation batch into translation jobs. The engine's
// own writes echo back through the subscription; those are consumed and
// dropped so translation output never feeds a new pass.
func (e *Engine) handleBatch(batch dom.Batch) {
	e.mu.Lock()
	if !e.active || e.sess == nil {
		e.mu.Unlock()
		return
	}
	sess, target, source := e.sess, e.target, e.source
	e.mu.Unlock()

	var textJobs, attrJobs []*html.Node
	seenText := make(map[*html.Node]bool)
	seenAttr := make(map[*html.Node]bool)

	addText := func(n *html.Node) {
		if !seenText[n] && e.cls.EligibleText(e.doc, n, target) {
			seenText[n] = true
			textJobs = append(textJobs, n)
		}
	}
	addAttrs := func(el *html.Node) {
		if !seenAttr[el] && e.cls.EligibleAttrs(e.doc, el, target) {
			seenAttr[el] = true
			attrJobs = append(attrJobs, el)
		}
	}

	for _, rec := range batch.Records {
		switch rec.Op {
		case dom.OpText:
			if e.echo.consumeText(rec.Node, rec.Value) {
				continue
			}
			if e.markers.Get(rec.Node) == classify.StateTranslating {
				// An in-flight translation will overwrite this node anyway.
				continue
			}
			if !e.doc.IsAttached(rec.Node) {
				continue
			}
			// The page rewrote the node: its previous original and marker no
			// longer describe the content.
			e.markers.Clear(rec.Node)
			e.orig.forgetText(rec.Node)
			if p := rec.Node.Parent; p != nil {
				if v, ok := e.doc.Attr(p, classify.AttrLang); ok && v != classify.StateTranslating {
					e.doc.RemoveAttr(p, classify.AttrLang)
				}
			}
			addText(rec.Node)

		case dom.OpAttr:
			if e.echo.consumeAttr(rec.Node, rec.Name, rec.Value) {
				continue
			}
			if v, ok := e.doc.Attr(rec.Node, classify.AttrAttrsLang); ok && v == classify.StateTranslating {
				continue
			}
			if !e.doc.IsAttached(rec.Node) {
				continue
			}
			e.orig.forgetAttr(rec.Node, rec.Name)
			e.doc.RemoveAttr(rec.Node, classify.AttrAttrsLang)
			addAttrs(rec.Node)

		case dom.OpAttrDel:
			e.orig.forgetAttr(rec.Node, rec.Name)

		case dom.OpInsert:
			if !e.doc.IsAttached(rec.Node) {
				continue
			}
			e.doc.WalkText(rec.Node, func(n *html.Node) bool {
				addText(n)
				return true
			})
			e.doc.WalkElements(rec.Node, func(el *html.Node) bool {
				addAttrs(el)
				return true
			})

		case dom.OpRemove:
			// Pruned below with everything else detached.
		}
	}

	e.orig.prune(e.doc.IsAttached)
	e.markers.Prune(e.doc.IsAttached)

	if len(textJobs) == 0 && len(attrJobs) == 0 {
		return
	}

	e.cfg.Logger.Debug("engine: mutation pass",
		"batch", batch.Seq, "text_jobs", len(textJobs), "attr_jobs", len(attrJobs))
	e.runJobs(context.Background(), sess, target, source, textJobs, attrJobs, newProgress(nil), "mutation")
}
