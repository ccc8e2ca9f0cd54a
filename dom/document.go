package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document is a mutable HTML tree shared between a host (the "page") and
// observers. All reads and writes go through Document methods; writes are
// recorded and fanned out to subscriptions.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	subs map[*Subscription]struct{}
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: root, subs: make(map[*Subscription]struct{})}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render serialises the document back to HTML.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("dom: render: %w", err)
	}
	return buf.String(), nil
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or the root if none exists.
func (d *Document) Body() *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var body *html.Node
	var find func(n *html.Node)
	find = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(d.root)
	if body == nil {
		return d.root
	}
	return body
}

// Text returns the data of a text node.
func (d *Document) Text(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return n.Data
}

// SetText replaces the data of a text node and records the mutation. It
// reports whether the document changed; writing the current value is a
// silent no-op.
func (d *Document) SetText(n *html.Node, s string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Data == s {
		return false
	}
	old := n.Data
	n.Data = s
	d.record(Record{Op: OpText, Node: n, Value: s, OldValue: old})
	return true
}

// Attr returns the value of an attribute on an element.
func (d *Document) Attr(el *html.Node, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return attrValue(el, name)
}

// SetAttr sets an attribute on an element and records the mutation. It
// reports whether the document changed.
func (d *Document) SetAttr(el *html.Node, name, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range el.Attr {
		if el.Attr[i].Key == name {
			if el.Attr[i].Val == value {
				return false
			}
			old := el.Attr[i].Val
			el.Attr[i].Val = value
			d.record(Record{Op: OpAttr, Node: el, Name: name, Value: value, OldValue: old})
			return true
		}
	}
	el.Attr = append(el.Attr, html.Attribute{Key: name, Val: value})
	d.record(Record{Op: OpAttr, Node: el, Name: name, Value: value})
	return true
}

// RemoveAttr deletes an attribute from an element and records the mutation.
func (d *Document) RemoveAttr(el *html.Node, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range el.Attr {
		if el.Attr[i].Key == name {
			old := el.Attr[i].Val
			el.Attr = append(el.Attr[:i], el.Attr[i+1:]...)
			d.record(Record{Op: OpAttrDel, Node: el, Name: name, OldValue: old})
			return
		}
	}
}

// AppendChild attaches child as the last child of parent and records the
// insertion. The child may carry a whole subtree.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent.AppendChild(child)
	d.record(Record{Op: OpInsert, Node: child})
}

// RemoveChild detaches child from parent and records the removal.
func (d *Document) RemoveChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent.RemoveChild(child)
	d.record(Record{Op: OpRemove, Node: child})
}

// IsAttached reports whether n is still reachable from the document root.
func (d *Document) IsAttached(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// WalkText visits every text node under root in document order. Returning
// false from fn stops the walk.
func (d *Document) WalkText(root *html.Node, fn func(n *html.Node) bool) {
	d.walk(root, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			return fn(n)
		}
		return true
	})
}

// WalkElements visits every element node under root in document order.
func (d *Document) WalkElements(root *html.Node, fn func(el *html.Node) bool) {
	d.walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			return fn(n)
		}
		return true
	})
}

// walk snapshots the subtree under the document lock, then visits the
// snapshot with fn outside it. Callbacks can therefore use the locking
// accessors, and a concurrent structural mutation cannot tear the traversal.
func (d *Document) walk(root *html.Node, fn func(n *html.Node) bool) {
	d.mu.Lock()
	var nodes []*html.Node
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		nodes = append(nodes, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	d.mu.Unlock()

	for _, n := range nodes {
		if !fn(n) {
			return
		}
	}
}

// record fans a mutation out to all live subscriptions. Called with d.mu held.
func (d *Document) record(rec Record) {
	for sub := range d.subs {
		sub.add(rec)
	}
}

func attrValue(el *html.Node, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SoleTextChild reports whether n is the only child of its parent. Used by
// consumers that mirror a text node's state onto its parent element.
func (d *Document) SoleTextChild(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := n.Parent
	return p != nil && p.Type == html.ElementNode && p.FirstChild == n && p.LastChild == n
}
