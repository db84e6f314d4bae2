package models

import (
	"net/url"
	"strings"
)

// CrawlConfig is the immutable input of a single crawl run.
type CrawlConfig struct {
	// SeedURL is the first page to fetch; its host defines "in-domain".
	SeedURL string `json:"seed_url"`

	// MaxDepth is the deepest link-hop distance that will be fetched.
	// 0 means only the seed page.
	MaxDepth int `json:"max_depth"`

	// IncludeExternal allows links to hosts other than the seed host.
	IncludeExternal bool `json:"include_external"`

	// Concurrency is the number of simultaneous fetch+extract pipelines.
	Concurrency int `json:"concurrency"`

	// MaxPages caps how many URLs the frontier will ever accept.
	// 0 means unlimited.
	MaxPages int `json:"max_pages,omitempty"`

	// ExcludePatterns are path globs (e.g. "/admin/*", "*.pdf") that are
	// never offered to the frontier.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
}

// Validate checks the configuration and returns the parsed seed URL.
// Any problem is reported as a *ConfigError.
func (c CrawlConfig) Validate() (*url.URL, error) {
	if c.Concurrency < 1 {
		return nil, &ConfigError{Field: "concurrency", Message: "must be at least 1"}
	}
	if c.MaxDepth < 0 {
		return nil, &ConfigError{Field: "max_depth", Message: "must not be negative"}
	}
	if c.MaxPages < 0 {
		return nil, &ConfigError{Field: "max_pages", Message: "must not be negative"}
	}

	raw := strings.TrimSpace(c.SeedURL)
	if raw == "" {
		return nil, &ConfigError{Field: "seed_url", Message: "is required"}
	}
	seed, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{Field: "seed_url", Message: err.Error()}
	}
	if seed.Scheme != "http" && seed.Scheme != "https" {
		return nil, &ConfigError{Field: "seed_url", Message: "scheme must be http or https"}
	}
	if seed.Host == "" {
		return nil, &ConfigError{Field: "seed_url", Message: "host is missing"}
	}
	return seed, nil
}
