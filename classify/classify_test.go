package classify

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/lingodom/lingodom/dom"
)

func parseDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func textNode(doc *dom.Document, match string) *html.Node {
	var found *html.Node
	doc.WalkText(doc.Root(), func(n *html.Node) bool {
		if strings.Contains(n.Data, match) {
			found = n
			return false
		}
		return true
	})
	return found
}

func element(doc *dom.Document, tag string) *html.Node {
	var found *html.Node
	doc.WalkElements(doc.Root(), func(el *html.Node) bool {
		if el.Data == tag {
			found = el
			return false
		}
		return true
	})
	return found
}

func newClassifier() (*Classifier, *Markers) {
	m := NewMarkers()
	return New(Config{}, m), m
}

func TestEligibleText(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>Hello world</p></body></html>`)
	c, _ := newClassifier()

	n := textNode(doc, "Hello")
	if !c.EligibleText(doc, n, "es") {
		t.Error("plain paragraph text should be eligible")
	}
}

func TestWhitespaceOnlyText(t *testing.T) {
	doc := parseDoc(t, "<html><body><div>   \n\t  </div></body></html>")
	c, _ := newClassifier()

	n := textNode(doc, "\n")
	if n == nil {
		t.Skip("parser dropped the whitespace node")
	}
	if c.EligibleText(doc, n, "es") {
		t.Error("whitespace-only text should not be eligible")
	}
}

func TestExcludedTags(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<script>var x = "Hello";</script>
		<pre>preformatted text</pre>
		<code>fmt.Println()</code>
		<p>real content</p>
	</body></html>`)
	c, _ := newClassifier()

	for _, match := range []string{"var x", "preformatted", "Println"} {
		if n := textNode(doc, match); n != nil && c.EligibleText(doc, n, "es") {
			t.Errorf("text %q in excluded tag should not be eligible", match)
		}
	}
	if !c.EligibleText(doc, textNode(doc, "real content"), "es") {
		t.Error("paragraph next to excluded tags should stay eligible")
	}
}

func TestExcludedClassAndSkipAttr(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="notranslate"><p>brand name</p></div>
		<div data-ai-skip="1"><span>skipped subtree</span></div>
		<p>normal</p>
	</body></html>`)
	c, _ := newClassifier()

	if c.EligibleText(doc, textNode(doc, "brand name"), "es") {
		t.Error("notranslate subtree should be excluded")
	}
	if c.EligibleText(doc, textNode(doc, "skipped subtree"), "es") {
		t.Error("data-ai-skip subtree should be excluded")
	}
	if !c.EligibleText(doc, textNode(doc, "normal"), "es") {
		t.Error("unmarked paragraph should be eligible")
	}
}

func TestMarkerStateBlocksRetranslation(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>Hello</p></body></html>`)
	c, m := newClassifier()
	n := textNode(doc, "Hello")

	m.Set(n, StateTranslating)
	if c.EligibleText(doc, n, "es") {
		t.Error("in-flight node should not be eligible")
	}

	m.Set(n, "es")
	if c.EligibleText(doc, n, "es") {
		t.Error("already-translated node should not be eligible")
	}
	if !c.EligibleText(doc, n, "fr") {
		t.Error("node translated to es should be eligible for fr")
	}
}

func TestParentLangAttrBlocks(t *testing.T) {
	doc := parseDoc(t, `<html><body><p data-ai-lang="es">Hola</p></body></html>`)
	c, _ := newClassifier()

	n := textNode(doc, "Hola")
	if c.EligibleText(doc, n, "es") {
		t.Error("parent marked es should block es eligibility")
	}
	if !c.EligibleText(doc, n, "fr") {
		t.Error("parent marked es should not block fr")
	}
}

func TestEligibleAttrs(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<input title="Save the file" placeholder="Name">
		<img alt="A sunset">
		<button>Plain</button>
		<input class="notranslate" title="Keep">
	</body></html>`)
	c, _ := newClassifier()

	if !c.EligibleAttrs(doc, element(doc, "input"), "es") {
		t.Error("input with title and placeholder should be eligible")
	}
	if !c.EligibleAttrs(doc, element(doc, "img"), "es") {
		t.Error("img with alt should be eligible")
	}
	if c.EligibleAttrs(doc, element(doc, "button"), "es") {
		t.Error("element without translatable attrs should not be eligible")
	}
}

func TestAttrsLangMarkerBlocks(t *testing.T) {
	doc := parseDoc(t, `<html><body><input data-ai-attrs-lang="es" title="Guardar"></body></html>`)
	c, _ := newClassifier()

	el := element(doc, "input")
	if c.EligibleAttrs(doc, el, "es") {
		t.Error("attrs already in target should not be eligible")
	}
	if !c.EligibleAttrs(doc, el, "fr") {
		t.Error("attrs in es should be eligible for fr")
	}
}

func TestMarkersResetMismatched(t *testing.T) {
	m := NewMarkers()
	a := &html.Node{Type: html.TextNode, Data: "a"}
	b := &html.Node{Type: html.TextNode, Data: "b"}
	c := &html.Node{Type: html.TextNode, Data: "c"}

	m.Set(a, "es")
	m.Set(b, "fr")
	m.Set(c, StateTranslating)

	m.ResetMismatched("es")
	if m.Get(a) != "es" {
		t.Error("matching marker was cleared")
	}
	if m.Get(b) != "" || m.Get(c) != "" {
		t.Error("mismatched markers survived reset")
	}
}

func TestMarkersPrune(t *testing.T) {
	m := NewMarkers()
	keep := &html.Node{Type: html.TextNode}
	drop := &html.Node{Type: html.TextNode}
	m.Set(keep, "es")
	m.Set(drop, "es")

	m.Prune(func(n *html.Node) bool { return n == keep })
	if m.Get(keep) != "es" {
		t.Error("attached node was pruned")
	}
	if m.Get(drop) != "" {
		t.Error("detached node survived prune")
	}
}
