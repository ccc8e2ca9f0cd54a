// Package classify decides whether a text node or an attribute-bearing
// element is eligible for translation. The predicate is pure: it reads the
// document and the marker state, it never writes either. The same exclusion
// rules serve the initial full-document sweep and every mutation batch.
package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/lingodom/lingodom/dom"
)

// Engine-owned DOM attributes. Unrelated code must not set these.
const (
	// AttrLang marks an element whose sole text child is translated to the
	// attribute's value, or currently "translating".
	AttrLang = "data-ai-lang"
	// AttrAttrsLang marks an element whose translatable attributes are
	// translated to the attribute's value, or currently "translating".
	AttrAttrsLang = "data-ai-attrs-lang"
	// AttrSkip is the external contract: any ancestor carrying it excludes
	// its whole subtree from processing.
	AttrSkip = "data-ai-skip"

	// StateTranslating is the in-progress marker value.
	StateTranslating = "translating"
)

// TranslatableAttrs is the fixed allow-list of attributes whose values are
// translated.
var TranslatableAttrs = []string{"title", "aria-label", "aria-description", "alt", "placeholder"}

// Config tunes the exclusion rules.
type Config struct {
	// ExcludedTags are element names whose subtrees are never translated.
	ExcludedTags []string `yaml:"excluded_tags"`
	// ExcludedClasses are class names whose subtrees are never translated.
	ExcludedClasses []string `yaml:"excluded_classes"`
	// SkipAttr overrides the skip marker attribute name.
	SkipAttr string `yaml:"skip_attr"`
}

func (c *Config) applyDefaults() {
	if len(c.ExcludedTags) == 0 {
		c.ExcludedTags = []string{
			"script", "style", "noscript", "code", "pre",
			"iframe", "canvas", "svg", "head", "fieldset",
		}
	}
	if len(c.ExcludedClasses) == 0 {
		c.ExcludedClasses = []string{"notranslate", "tooltip-popper"}
	}
	if c.SkipAttr == "" {
		c.SkipAttr = AttrSkip
	}
}

// Classifier evaluates eligibility against one configuration and one marker
// map.
type Classifier struct {
	tags    map[string]bool
	classes map[string]bool
	skip    string
	markers *Markers
}

// New creates a Classifier. markers holds the text-node marker state shared
// with the engine.
func New(cfg Config, markers *Markers) *Classifier {
	cfg.applyDefaults()

	c := &Classifier{
		tags:    make(map[string]bool, len(cfg.ExcludedTags)),
		classes: make(map[string]bool, len(cfg.ExcludedClasses)),
		skip:    cfg.SkipAttr,
		markers: markers,
	}
	for _, t := range cfg.ExcludedTags {
		c.tags[strings.ToLower(t)] = true
	}
	for _, cl := range cfg.ExcludedClasses {
		c.classes[cl] = true
	}
	return c
}

// Excluded reports whether el or any ancestor carries the skip marker, an
// excluded tag, or an excluded class. Shared by text and attribute
// eligibility.
func (c *Classifier) Excluded(doc *dom.Document, el *html.Node) bool {
	for p := el; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if c.tags[p.Data] {
			return true
		}
		if _, ok := doc.Attr(p, c.skip); ok {
			return true
		}
		if class, ok := doc.Attr(p, "class"); ok {
			for _, name := range strings.Fields(class) {
				if c.classes[name] {
					return true
				}
			}
		}
	}
	return false
}

// EligibleText reports whether text node n should be translated to target.
func (c *Classifier) EligibleText(doc *dom.Document, n *html.Node, target string) bool {
	if n.Type != html.TextNode {
		return false
	}
	if strings.TrimSpace(doc.Text(n)) == "" {
		return false
	}

	parent := n.Parent
	if parent == nil || c.Excluded(doc, parent) {
		return false
	}
	if v, ok := doc.Attr(parent, AttrLang); ok {
		if v == StateTranslating || v == target {
			return false
		}
	}

	switch c.markers.Get(n) {
	case StateTranslating, target:
		return false
	}
	return true
}

// EligibleAttrs reports whether element el has translatable attribute work
// pending for target.
func (c *Classifier) EligibleAttrs(doc *dom.Document, el *html.Node, target string) bool {
	if el.Type != html.ElementNode {
		return false
	}
	if v, ok := doc.Attr(el, AttrAttrsLang); ok {
		if v == StateTranslating || v == target {
			return false
		}
	}
	if c.Excluded(doc, el) {
		return false
	}

	for _, name := range TranslatableAttrs {
		if v, ok := doc.Attr(el, name); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
