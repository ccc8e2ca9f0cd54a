package engine

import (
	"context"
	"fmt"

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/dom"
)

// TranslateHTML translates a standalone HTML document and returns the
// result. No watcher is started and nothing is persisted; the translated
// markup (including the language marker attributes) is the product.
func TranslateHTML(ctx context.Context, src string, factory capability.Factory, cfg Config, target, source string) (string, error) {
	doc, err := dom.ParseString(src)
	if err != nil {
		return "", err
	}

	eng := New(doc, factory, cfg)
	defer eng.Close()

	if err := eng.Enable(ctx, EnableOptions{
		Target: target,
		Source: source,
		Silent: true,
	}); err != nil {
		return "", err
	}

	out, err := doc.Render()
	if err != nil {
		return "", fmt.Errorf("engine: render: %w", err)
	}
	return out, nil
}
