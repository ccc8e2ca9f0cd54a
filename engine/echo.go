package engine

import (
	"sync"

	"golang.org/x/net/html"
)

type attrKey struct {
	el   *html.Node
	name string
}

// echo tracks the engine's own document writes so the mutation watcher can
// tell them apart from page writes. Every write is recorded before it
// happens; the matching mutation record consumes the entry. Values queue up
// per node because debounce compression can merge a restore write and the
// retranslation write into a single record carrying only the final value.
type echo struct {
	mu   sync.Mutex
	text map[*html.Node][]string
	attr map[attrKey][]string
}

func newEcho() *echo {
	return &echo{
		text: make(map[*html.Node][]string),
		attr: make(map[attrKey][]string),
	}
}

func (e *echo) wroteText(n *html.Node, value string) {
	e.mu.Lock()
	e.text[n] = append(e.text[n], value)
	e.mu.Unlock()
}

// consumeText reports whether value is one of the engine's pending writes to
// n. A match consumes every entry up to and including it: a compressed record
// carries only the last of a run of writes, so older entries are spent too.
// No match leaves nothing behind either; the page has rewritten the node and
// the pending history is void.
func (e *echo) consumeText(n *html.Node, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, ok := e.text[n]
	if !ok {
		return false
	}
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i] == value {
			if rest := pending[i+1:]; len(rest) > 0 {
				e.text[n] = rest
			} else {
				delete(e.text, n)
			}
			return true
		}
	}
	delete(e.text, n)
	return false
}

// dropLastText removes the newest pending entry for n if it carries value.
// Used to unwind a recorded write that turned out to be a no-op: no mutation
// record will ever arrive to consume it.
func (e *echo) dropLastText(n *html.Node, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.text[n]
	if len(pending) == 0 || pending[len(pending)-1] != value {
		return
	}
	if len(pending) == 1 {
		delete(e.text, n)
		return
	}
	e.text[n] = pending[:len(pending)-1]
}

func (e *echo) wroteAttr(el *html.Node, name, value string) {
	k := attrKey{el, name}
	e.mu.Lock()
	e.attr[k] = append(e.attr[k], value)
	e.mu.Unlock()
}

func (e *echo) consumeAttr(el *html.Node, name, value string) bool {
	k := attrKey{el, name}
	e.mu.Lock()
	defer e.mu.Unlock()
	pending, ok := e.attr[k]
	if !ok {
		return false
	}
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i] == value {
			if rest := pending[i+1:]; len(rest) > 0 {
				e.attr[k] = rest
			} else {
				delete(e.attr, k)
			}
			return true
		}
	}
	delete(e.attr, k)
	return false
}

// dropLastAttr mirrors dropLastText for attribute writes.
func (e *echo) dropLastAttr(el *html.Node, name, value string) {
	k := attrKey{el, name}
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.attr[k]
	if len(pending) == 0 || pending[len(pending)-1] != value {
		return
	}
	if len(pending) == 1 {
		delete(e.attr, k)
		return
	}
	e.attr[k] = pending[:len(pending)-1]
}

func (e *echo) reset() {
	e.mu.Lock()
	e.text = make(map[*html.Node][]string)
	e.attr = make(map[attrKey][]string)
	e.mu.Unlock()
}
