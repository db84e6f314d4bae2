package cleaner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/deepcrawl/models"
)

// Extract modes.
const (
	ModeAuto        = "auto"
	ModeReadability = "readability"
	ModePruning     = "pruning"
	ModeText        = "text"
	ModeRaw         = "raw"
)

// Options selects and configures the extraction strategies.
type Options struct {
	// Mode is one of the Mode* constants. Empty means ModeAuto.
	Mode string

	// ContentFormat is the readability output: FormatText, FormatMarkdown
	// or FormatMarkdownCitations. Empty means FormatText.
	ContentFormat string

	// Selector, when set, adds a CSS selector strategy in front.
	Selector string

	// ExcludeSelectors are removed from the document before extraction.
	ExcludeSelectors []string
}

// DetectStrategies builds the ordered strategy list for opts. It runs once
// at startup; the returned slice is handed to NewChain and never changed.
func DetectStrategies(opts Options) ([]Strategy, error) {
	var strategies []Strategy

	if opts.Selector != "" {
		sel, err := NewSelectorStrategy(opts.Selector)
		if err != nil {
			return nil, &models.ConfigError{Field: "selector", Message: err.Error()}
		}
		strategies = append(strategies, sel)
	}

	switch opts.ContentFormat {
	case "", FormatText, FormatMarkdown, FormatMarkdownCitations:
	default:
		return nil, &models.ConfigError{
			Field:   "content_format",
			Message: fmt.Sprintf("unknown format %q (want text, markdown or markdown_citations)", opts.ContentFormat),
		}
	}

	switch opts.Mode {
	case "", ModeAuto:
		strategies = append(strategies,
			NewReadabilityStrategy(opts.ContentFormat),
			PruningStrategy{},
			DOMTextStrategy{},
		)
	case ModeReadability:
		strategies = append(strategies, NewReadabilityStrategy(opts.ContentFormat), DOMTextStrategy{})
	case ModePruning:
		strategies = append(strategies, PruningStrategy{}, DOMTextStrategy{})
	case ModeText:
		strategies = append(strategies, DOMTextStrategy{})
	case ModeRaw:
		// Only the raw fallback.
	default:
		return nil, &models.ConfigError{
			Field:   "extract_mode",
			Message: fmt.Sprintf("unknown mode %q (want auto, readability, pruning, text or raw)", opts.Mode),
		}
	}
	return strategies, nil
}

// Cleaner turns fetched HTML into readable text and discovers links.
// It is safe for concurrent use.
type Cleaner struct {
	chain            *Chain
	excludeSelectors []string
}

// New builds a Cleaner for opts.
func New(opts Options) (*Cleaner, error) {
	strategies, err := DetectStrategies(opts)
	if err != nil {
		return nil, err
	}
	c := NewWithChain(NewChain(strategies...))
	c.excludeSelectors = append([]string(nil), opts.ExcludeSelectors...)

	slog.Debug("extractor chain ready",
		"strategies", strings.Join(c.chain.Strategies(), ","),
		"exclude", len(c.excludeSelectors),
	)
	return c, nil
}

// NewWithChain wraps an existing chain, with no exclusion filter.
func NewWithChain(chain *Chain) *Cleaner {
	return &Cleaner{chain: chain}
}

// Extract resolves readable content from rawHTML. It never fails.
func (c *Cleaner) Extract(rawHTML, sourceURL string) Extraction {
	if strings.TrimSpace(rawHTML) == "" {
		return Extraction{}
	}
	if len(c.excludeSelectors) > 0 {
		rawHTML = RemoveSelectors(rawHTML, c.excludeSelectors)
	}
	return c.chain.Extract(rawHTML, sourceURL)
}

// Strategies returns the strategy names in chain order.
func (c *Cleaner) Strategies() []string {
	return c.chain.Strategies()
}
