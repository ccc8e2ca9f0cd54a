package engine

import (
	"sync"

	"golang.org/x/net/html"
)

// originals remembers pre-translation content so disable can restore the
// document exactly. First capture wins: once a node's original is recorded,
// later captures are ignored until the page itself rewrites the node and the
// entry is forgotten.
type originals struct {
	mu    sync.Mutex
	text  map[*html.Node]string
	attrs map[*html.Node]map[string]string
}

func newOriginals() *originals {
	return &originals{
		text:  make(map[*html.Node]string),
		attrs: make(map[*html.Node]map[string]string),
	}
}

// captureText records value as n's original on first call and returns the
// original. The return value, not the live text, is what gets translated: a
// retry after a partial write must never feed the engine's own output back
// to the capability.
func (o *originals) captureText(n *html.Node, value string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok := o.text[n]; ok {
		return v
	}
	o.text[n] = value
	return value
}

func (o *originals) forgetText(n *html.Node) {
	o.mu.Lock()
	delete(o.text, n)
	o.mu.Unlock()
}

// captureAttr records value as the original of el's attribute on first call
// and returns the original, mirroring captureText.
func (o *originals) captureAttr(el *html.Node, name, value string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := o.attrs[el]
	if m == nil {
		m = make(map[string]string)
		o.attrs[el] = m
	}
	if v, ok := m[name]; ok {
		return v
	}
	m[name] = value
	return value
}

func (o *originals) forgetAttr(el *html.Node, name string) {
	o.mu.Lock()
	if m := o.attrs[el]; m != nil {
		delete(m, name)
		if len(m) == 0 {
			delete(o.attrs, el)
		}
	}
	o.mu.Unlock()
}

// snapshot returns copies of both maps for restoration.
func (o *originals) snapshot() (map[*html.Node]string, map[*html.Node]map[string]string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	text := make(map[*html.Node]string, len(o.text))
	for n, v := range o.text {
		text[n] = v
	}
	attrs := make(map[*html.Node]map[string]string, len(o.attrs))
	for el, m := range o.attrs {
		mc := make(map[string]string, len(m))
		for k, v := range m {
			mc[k] = v
		}
		attrs[el] = mc
	}
	return text, attrs
}

func (o *originals) reset() {
	o.mu.Lock()
	o.text = make(map[*html.Node]string)
	o.attrs = make(map[*html.Node]map[string]string)
	o.mu.Unlock()
}

// prune drops entries for nodes no longer attached to the document.
func (o *originals) prune(attached func(*html.Node) bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for n := range o.text {
		if !attached(n) {
			delete(o.text, n)
		}
	}
	for el := range o.attrs {
		if !attached(el) {
			delete(o.attrs, el)
		}
	}
}
