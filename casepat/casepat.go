// Package casepat detects the casing convention of a source string and
// re-applies it to a translated string. Best-effort pattern matching: it
// preserves the visual convention (HELLO stays HELLO), it does not guarantee
// idiomatic casing in the target language.
package casepat

import (
	"strings"
	"unicode"
)

// Pattern is a casing convention detected from source text.
type Pattern int

const (
	None Pattern = iota // no letters, or no recognised convention
	Lower
	Upper
	Capitalized // first letter upper, everything after it lower
	Title       // every word-run starts upper, rest of the run lower
)

func (p Pattern) String() string {
	switch p {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	case Capitalized:
		return "capitalized"
	case Title:
		return "title"
	default:
		return "none"
	}
}

// Detect returns the casing pattern of s. Upper is checked before Lower so
// that a single-letter capital reads as Upper.
func Detect(s string) Pattern {
	if !hasLetter(s) {
		return None
	}
	if s == strings.ToUpper(s) {
		return Upper
	}
	if s == strings.ToLower(s) {
		return Lower
	}
	if isCapitalized(s) {
		return Capitalized
	}
	if isTitle(s) {
		return Title
	}
	return None
}

// Apply rewrites s to follow the given pattern. None is the identity.
func Apply(s string, p Pattern) string {
	switch p {
	case Upper:
		return strings.ToUpper(s)
	case Lower:
		return strings.ToLower(s)
	case Capitalized:
		return capitalize(s)
	case Title:
		return titleize(s)
	default:
		return s
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isCapitalized reports whether the first letter is upper and everything
// after it is already lowercase.
func isCapitalized(s string) bool {
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			rest := string(runes[i+1:])
			return rest == strings.ToLower(rest)
		}
	}
	return false
}

// wordRune reports whether r continues a word-run: letters, combining
// marks, and word-internal apostrophes.
func wordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsMark(r) || r == '\'' || r == '’'
}

// isTitle reports whether every word-run starts upper and continues lower.
func isTitle(s string) bool {
	inWord := false
	for _, r := range s {
		letterish := wordRune(r)
		switch {
		case letterish && !inWord:
			if unicode.IsLetter(r) && !unicode.IsUpper(r) {
				return false
			}
			inWord = true
		case letterish && inWord:
			if unicode.IsLetter(r) && unicode.IsUpper(r) {
				return false
			}
		default:
			inWord = false
		}
	}
	return true
}

// capitalize lowercases everything, then uppercases the first letter found.
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			break
		}
	}
	return string(runes)
}

// titleize uppercases the first letter of every word-run and lowercases the
// rest of each run, leaving separators untouched.
func titleize(s string) string {
	runes := []rune(s)
	inWord := false
	for i, r := range runes {
		letterish := wordRune(r)
		switch {
		case letterish && !inWord:
			runes[i] = unicode.ToUpper(r)
			inWord = true
		case letterish && inWord:
			runes[i] = unicode.ToLower(r)
		default:
			inWord = false
		}
	}
	return string(runes)
}
