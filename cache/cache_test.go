package cache

import "testing"

func TestGetSet(t *testing.T) {
	c := New()
	ctx := Context{Source: "en", Target: "es", Scope: ScopeText}

	if _, ok := c.Get("Hello", ctx); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Set("Hello", "Hola", ctx)
	got, ok := c.Get("Hello", ctx)
	if !ok || got != "Hola" {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, "Hola")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestWhitespaceInsensitiveKey(t *testing.T) {
	c := New()
	ctx := Context{Source: "en", Target: "es", Scope: ScopeText}

	c.Set("  Hello  ", "Hola", ctx)
	if got, ok := c.Get("Hello", ctx); !ok || got != "Hola" {
		t.Errorf("trimmed lookup = %q, %v; want hit", got, ok)
	}
}

func TestScopeDisambiguation(t *testing.T) {
	c := New()
	text := Context{Source: "en", Target: "es", Scope: ScopeText}
	attr := Context{Source: "en", Target: "es", Scope: ScopeAttr, Attr: "title"}

	c.Set("Close", "Cerrar", text)
	if _, ok := c.Get("Close", attr); ok {
		t.Error("attr scope hit a text-scope entry")
	}

	c.Set("Close", "Cierre", attr)
	if got, _ := c.Get("Close", text); got != "Cerrar" {
		t.Errorf("text entry = %q, want %q", got, "Cerrar")
	}
	if got, _ := c.Get("Close", attr); got != "Cierre" {
		t.Errorf("attr entry = %q, want %q", got, "Cierre")
	}
}

func TestLanguagePairIsolation(t *testing.T) {
	c := New()
	es := Context{Source: "en", Target: "es", Scope: ScopeText}
	fr := Context{Source: "en", Target: "fr", Scope: ScopeText}

	c.Set("Hello", "Hola", es)
	if _, ok := c.Get("Hello", fr); ok {
		t.Error("fr lookup hit an es entry")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	ctx := Context{Source: "en", Target: "es", Scope: ScopeText}
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.Set("Hello", "Hola", ctx)
				c.Get("Hello", ctx)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if got, _ := c.Get("Hello", ctx); got != "Hola" {
		t.Errorf("after concurrent writes = %q", got)
	}
}
