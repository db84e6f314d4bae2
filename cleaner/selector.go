package cleaner

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// SelectorStrategy extracts the text of the elements matching a CSS
// selector. It fails when nothing matches.
type SelectorStrategy struct {
	raw string
	sel cascadia.Sel
}

// NewSelectorStrategy compiles selector. An invalid selector is an error.
func NewSelectorStrategy(selector string) (*SelectorStrategy, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("selector: parse %q: %w", selector, err)
	}
	return &SelectorStrategy{raw: selector, sel: sel}, nil
}

func (s *SelectorStrategy) Name() string { return "selector" }

func (s *SelectorStrategy) Extract(rawHTML, _ string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := cascadia.QueryAll(doc, s.sel)
	if len(matches) == 0 {
		return "", fmt.Errorf("selector: no element matches %q", s.raw)
	}

	parts := make([]string, 0, len(matches))
	for _, node := range matches {
		if text := NormalizeParagraphs(TextContent(node)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
