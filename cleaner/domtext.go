package cleaner

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOMTextStrategy returns the full text content of the document with
// paragraph reconstruction. It is the last strategy before the raw fallback.
type DOMTextStrategy struct{}

func (DOMTextStrategy) Name() string { return "dom_text" }

func (DOMTextStrategy) Extract(rawHTML, _ string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}
	return NormalizeParagraphs(TextContent(doc)), nil
}

// skippedText lists elements whose text is never readable content.
var skippedText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
}

// blockElements end a line in TextContent output.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Table: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Blockquote: true, atom.Pre: true,
	atom.Ul: true, atom.Ol: true, atom.Dt: true, atom.Dd: true, atom.Hr: true,
}

// TextContent concatenates the text nodes under n, skipping script/style
// content and ending a line after block-level elements.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedText[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			buf.WriteByte('\n')
		}
	}
	walk(n)
	return buf.String()
}

// NormalizeParagraphs splits text into lines, trims each line, drops blank
// lines and joins the rest with a blank line between them.
func NormalizeParagraphs(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			kept = append(kept, ln)
		}
	}
	return strings.Join(kept, "\n\n")
}
