package fetch

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Thresholds for judging whether static HTML already carries enough
// translatable text. Below them the page is assumed to build its content
// with JavaScript, and the headless render is worth its cost.
const (
	minDocumentBytes = 256
	minLetters       = 200
	minTextShare     = 0.05
)

// mountIDs are element ids frameworks hang a client-rendered app on. An
// empty element with one of these ids marks the document as a shell even
// when the static boilerplate around it looks substantial.
var mountIDs = map[string]bool{"root": true, "app": true, "__next": true}

// IsSufficient reports whether raw already carries enough translatable text
// to skip the browser. The document is tokenized once: visible characters
// outside script and style are counted, and the telltales of a
// client-rendered shell (an empty mount element, a noscript JavaScript
// warning) short-circuit to a render regardless of how much boilerplate
// surrounds them.
func IsSufficient(raw []byte) bool {
	if len(raw) < minDocumentBytes {
		return false
	}

	var visible, letters int
	var skip int // depth inside script/style/template
	inNoscript := false
	pendingMount := false

	z := html.NewTokenizer(bytes.NewReader(raw))
scan:
	for {
		switch z.Next() {
		case html.ErrorToken:
			// EOF, or a malformed tail; judge what was seen.
			break scan

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			pendingMount = false
			switch tok.Data {
			case "script", "style", "template":
				if tok.Type == html.StartTagToken {
					skip++
				}
			case "noscript":
				inNoscript = tok.Type == html.StartTagToken
			case "div":
				if mountID(tok) {
					if tok.Type == html.SelfClosingTagToken {
						return false
					}
					pendingMount = true
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "div":
				if pendingMount {
					// The mount point closed with nothing inside it.
					return false
				}
			case "script", "style", "template":
				if skip > 0 {
					skip--
				}
			case "noscript":
				inNoscript = false
			}
			pendingMount = false

		case html.TextToken:
			text := z.Text()
			if len(bytes.TrimSpace(text)) > 0 {
				pendingMount = false
			}
			switch {
			case skip > 0:
			case inNoscript:
				if strings.Contains(strings.ToLower(string(text)), "enable javascript") {
					return false
				}
			default:
				v, l := countVisible(text)
				visible += v
				letters += l
			}
		}
	}

	if letters < minLetters {
		return false
	}
	return float64(visible)/float64(len(raw)) >= minTextShare
}

// mountID reports whether the token's id attribute names a known SPA mount
// point.
func mountID(tok html.Token) bool {
	for _, a := range tok.Attr {
		if a.Key == "id" {
			return mountIDs[strings.ToLower(a.Val)]
		}
	}
	return false
}

// countVisible counts non-whitespace characters and, of those, letters.
func countVisible(text []byte) (visible, letters int) {
	for _, r := range string(text) {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return visible, letters
}
