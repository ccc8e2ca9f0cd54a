// Package detect identifies the language of page text so callers can skip
// translating content already in the target language, and fill in a missing
// source language.
package detect

import (
	"strings"
	"sync"
	"unicode"

	"github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// The detector loads its language models lazily; building it is expensive,
// so it is shared process-wide.
func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return detector
}

// Language returns the ISO 639-1 code of text ("en", "fr", ...), or "" when
// the text is too short or the detection is not confident.
func Language(text string) string {
	text = strings.TrimSpace(text)
	if letterCount(text) < 6 {
		return ""
	}
	lang, ok := getDetector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// Sample concatenates up to limit characters of the given snippets for a
// whole-document detection. Snippets are assumed pre-trimmed.
func Sample(snippets []string, limit int) string {
	var b strings.Builder
	for _, s := range snippets {
		if b.Len() >= limit {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	out := b.String()
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
