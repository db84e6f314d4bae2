package cleaner

import (
	"errors"
	"fmt"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we assume
// the algorithm failed to locate the main content.
const minContentLength = 50

// Content formats produced by ReadabilityStrategy.
const (
	FormatText              = "text"
	FormatMarkdown          = "markdown"
	FormatMarkdownCitations = "markdown_citations"
)

var errContentTooShort = errors.New("readability: extracted content too short")

// ReadabilityStrategy runs the Mozilla Readability algorithm and returns the
// main article, either as plain text or converted to Markdown.
type ReadabilityStrategy struct {
	format      string
	mdConverter *converter.Converter
}

// NewReadabilityStrategy creates the primary article extractor. Unknown
// formats are treated as FormatText.
func NewReadabilityStrategy(format string) *ReadabilityStrategy {
	s := &ReadabilityStrategy{format: FormatText}
	switch format {
	case FormatMarkdown, FormatMarkdownCitations:
		s.format = format
		s.mdConverter = newMarkdownConverter()
	}
	return s
}

func (s *ReadabilityStrategy) Name() string { return "readability" }

func (s *ReadabilityStrategy) Extract(rawHTML, sourceURL string) (string, error) {
	article, err := ExtractArticle(rawHTML, sourceURL)
	if err != nil {
		return "", err
	}

	switch s.format {
	case FormatMarkdown, FormatMarkdownCitations:
		md, err := ToMarkdown(s.mdConverter, article.Content, sourceURL)
		if err != nil {
			return "", fmt.Errorf("readability: markdown conversion: %w", err)
		}
		if s.format == FormatMarkdownCitations {
			md = ConvertToCitations(md)
		}
		return md, nil
	default:
		return strings.TrimSpace(article.TextContent), nil
	}
}

// ExtractArticle runs readability on rawHTML and rejects results whose text
// is shorter than minContentLength.
func ExtractArticle(rawHTML, sourceURL string) (readability.Article, error) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("readability: invalid source URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return readability.Article{}, fmt.Errorf("readability: %w", err)
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{}, errContentTooShort
	}
	return article, nil
}
