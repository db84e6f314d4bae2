package cleaner

import (
	"fmt"
	"log/slog"
	"strings"
)

// RawStrategyName is reported when the chain fell back to the trimmed input.
const RawStrategyName = "raw"

// Strategy converts raw HTML into readable text.
//
// A strategy may return an error or an empty string to signal that it could
// not handle the document; the chain then tries the next one.
type Strategy interface {
	Name() string
	Extract(rawHTML, sourceURL string) (string, error)
}

// Extraction is the output of Chain.Extract.
type Extraction struct {
	// Text is the readable content.
	Text string

	// Strategy is the name of the strategy that produced Text, RawStrategyName
	// for the raw fallback, or "" for empty input.
	Strategy string
}

// Chain runs an ordered, immutable list of strategies with fallback on failure.
// It is safe for concurrent use as long as its strategies are.
type Chain struct {
	strategies []Strategy
}

// NewChain creates a Chain. The slice is copied; later changes to the caller's
// slice do not affect the chain.
func NewChain(strategies ...Strategy) *Chain {
	s := make([]Strategy, 0, len(strategies))
	for _, st := range strategies {
		if st != nil {
			s = append(s, st)
		}
	}
	return &Chain{strategies: s}
}

// Strategies returns the names of the configured strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract never fails. Empty input yields an empty result without invoking
// any strategy; if every strategy fails, the trimmed input is returned.
func (c *Chain) Extract(rawHTML, sourceURL string) Extraction {
	if strings.TrimSpace(rawHTML) == "" {
		return Extraction{}
	}

	for _, s := range c.strategies {
		text, err := runStrategy(s, rawHTML, sourceURL)
		if err != nil {
			slog.Debug("extract: strategy failed", "strategy", s.Name(), "url", sourceURL, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			slog.Debug("extract: strategy returned no content", "strategy", s.Name(), "url", sourceURL)
			continue
		}
		return Extraction{Text: text, Strategy: s.Name()}
	}

	return Extraction{Text: strings.TrimSpace(rawHTML), Strategy: RawStrategyName}
}

// runStrategy converts a strategy panic into an error.
func runStrategy(s Strategy, rawHTML, sourceURL string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Extract(rawHTML, sourceURL)
}
