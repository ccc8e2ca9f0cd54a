// Package cache memoizes translated strings so the same source text is never
// sent to the translation capability twice for the same language pair and
// usage context. Entries store the raw translation, before any casing
// adjustment, so one entry serves nodes with different casing requirements.
//
// The cache is unbounded: its lifetime is one translation session, and a
// language change starts a new key space because both languages are part of
// the key.
package cache

import (
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Scope describes where a cached string originated. It exists to avoid key
// collisions between, say, a title attribute and a body text node sharing
// the same literal text that may warrant different renderings.
type Scope string

const (
	ScopeText Scope = "text" // body text node
	ScopeAttr Scope = "attr" // element attribute
	ScopeUI   Scope = "ui"   // UI chrome strings
)

// Context disambiguates a cache key beyond the source text itself. The
// owning element's tag is deliberately not part of the key: the same string
// in a <p> and a <span> shares one entry.
type Context struct {
	Source string
	Target string
	Scope  Scope
	Attr   string // attribute name, for ScopeAttr
	Hint   string // free-form extra discriminator
}

// Cache is a concurrency-safe translation memo.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Get returns the raw cached translation for text under ctx.
func (c *Cache) Get(text string, ctx Context) (string, bool) {
	k := key(text, ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

// Set stores the raw (pre-case-adjustment) translation for text under ctx.
func (c *Cache) Set(text, translated string, ctx Context) {
	k := key(text, ctx)
	c.mu.Lock()
	c.m[k] = translated
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// key builds a fixed-size digest over the trimmed text and every context
// field, NUL-separated so field boundaries cannot collide.
func key(text string, ctx Context) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{
		strings.TrimSpace(text),
		ctx.Source, ctx.Target,
		string(ctx.Scope), ctx.Attr, ctx.Hint,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
