package classify

import (
	"sync"

	"golang.org/x/net/html"
)

// Markers tracks per-text-node translation state. Text nodes cannot carry
// DOM attributes, so their state lives in this identity-keyed map; element
// state lives on the elements themselves as AttrLang / AttrAttrsLang.
//
// Entries do not keep nodes alive in any meaningful sense (the document owns
// its nodes); detached nodes are pruned opportunistically on each mutation
// batch.
type Markers struct {
	mu sync.Mutex
	m  map[*html.Node]string

	// elements the engine wrote marker attributes onto, so restore can
	// remove exactly what was touched.
	els map[*html.Node]struct{}
}

// NewMarkers creates an empty marker map.
func NewMarkers() *Markers {
	return &Markers{
		m:   make(map[*html.Node]string),
		els: make(map[*html.Node]struct{}),
	}
}

// Get returns the marker state for n: "" (untranslated), StateTranslating,
// or a language tag.
func (mk *Markers) Get(n *html.Node) string {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.m[n]
}

// Set records the marker state for n.
func (mk *Markers) Set(n *html.Node, state string) {
	mk.mu.Lock()
	mk.m[n] = state
	mk.mu.Unlock()
}

// Clear resets n back to untranslated.
func (mk *Markers) Clear(n *html.Node) {
	mk.mu.Lock()
	delete(mk.m, n)
	mk.mu.Unlock()
}

// TrackElement remembers that the engine wrote a marker attribute onto el.
func (mk *Markers) TrackElement(el *html.Node) {
	mk.mu.Lock()
	mk.els[el] = struct{}{}
	mk.mu.Unlock()
}

// Elements returns every element the engine wrote marker attributes onto.
func (mk *Markers) Elements() []*html.Node {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	out := make([]*html.Node, 0, len(mk.els))
	for el := range mk.els {
		out = append(out, el)
	}
	return out
}

// ResetMismatched clears every text-node marker whose state is not target,
// including in-progress markers. Called on language change.
func (mk *Markers) ResetMismatched(target string) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	for n, state := range mk.m {
		if state != target {
			delete(mk.m, n)
		}
	}
}

// ResetAll drops all marker state. Called on disable.
func (mk *Markers) ResetAll() {
	mk.mu.Lock()
	mk.m = make(map[*html.Node]string)
	mk.els = make(map[*html.Node]struct{})
	mk.mu.Unlock()
}

// Prune drops entries for nodes that are no longer attached.
func (mk *Markers) Prune(attached func(*html.Node) bool) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	for n := range mk.m {
		if !attached(n) {
			delete(mk.m, n)
		}
	}
	for el := range mk.els {
		if !attached(el) {
			delete(mk.els, el)
		}
	}
}

// Len returns the number of tracked text nodes.
func (mk *Markers) Len() int {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return len(mk.m)
}
