package engine

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/casepat"
)

// streamTranslate translates text through a streaming session, rewriting the
// node after every chunk so long passages render progressively. Returns the
// full raw translation for caching. A stream failure falls back to
// sentence-by-sentence translation rather than surfacing an error for a
// capability the session nominally has.
func (e *Engine) streamTranslate(ctx context.Context, ss capability.StreamingSession, n *html.Node, text string, pattern casepat.Pattern, lead, trail string) (string, error) {
	var acc strings.Builder
	err := ss.TranslateStream(ctx, text, func(chunk string) {
		acc.WriteString(chunk)
		e.writeText(n, lead+casepat.Apply(acc.String(), pattern)+trail)
	})
	if err == nil {
		return acc.String(), nil
	}
	if capability.IsCancellation(err) || ctx.Err() != nil {
		return "", err
	}

	e.cfg.Logger.Warn("engine: stream failed, falling back to chunked translation", "error", err)
	return e.chunkedTranslate(ctx, ss, n, text, pattern, lead, trail)
}

// chunkedTranslate approximates streaming with single-shot calls: the text
// is split into sentences, each translated in order, and the node rewritten
// after every sentence completes.
func (e *Engine) chunkedTranslate(ctx context.Context, sess capability.Session, n *html.Node, text string, pattern casepat.Pattern, lead, trail string) (string, error) {
	sentences := splitSentences(text)
	translated := make([]string, 0, len(sentences))

	for _, sentence := range sentences {
		out, err := sess.Translate(ctx, sentence)
		if err != nil {
			return "", err
		}
		translated = append(translated, out)
		partial := strings.Join(translated, " ")
		e.writeText(n, lead+casepat.Apply(partial, pattern)+trail)
	}
	return strings.Join(translated, " "), nil
}

// Sentence boundaries: terminal punctuation followed by whitespace. Good
// enough for fallback chunking; not a linguistic segmenter.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks text at sentence boundaries, keeping the terminal
// punctuation with its sentence. Text without boundaries comes back whole.
func splitSentences(text string) []string {
	matches := sentenceEnd.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var out []string
	prev := 0
	for _, m := range matches {
		// m[3] is the end of the punctuation group: the sentence includes it,
		// the separating whitespace does not.
		out = append(out, text[prev:m[3]])
		prev = m[1]
	}
	if prev < len(text) {
		if rest := strings.TrimSpace(text[prev:]); rest != "" {
			out = append(out, text[prev:])
		}
	}
	return out
}
