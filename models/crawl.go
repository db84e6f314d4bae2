package models

// CrawlRequest is the payload for POST /api/v1/crawl.
type CrawlRequest struct {
	// URL is the seed page to crawl. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxDepth limits the crawl depth from the seed URL.
	// Nil falls back to the server default. Max: 10.
	MaxDepth *int `json:"max_depth,omitempty" binding:"omitempty,min=0,max=10"`

	// IncludeExternal allows following links to other hosts.
	IncludeExternal bool `json:"include_external,omitempty"`

	// Concurrency is the number of parallel fetch pipelines. Max: 32.
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=32"`

	// MaxPages caps the number of pages accepted into the frontier.
	// Default: 100. Max: 1000.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=1000"`

	// ExcludePatterns is a list of glob patterns for paths to skip.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// CacheMaxAgeMs serves a cached document younger than this age.
	// Zero disables the cache lookup.
	CacheMaxAgeMs int `json:"cache_max_age_ms,omitempty" binding:"omitempty,min=0"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// CrawlResponse is the immediate response for POST /api/v1/crawl.
type CrawlResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// CrawlStatusResponse is the response for GET /api/v1/crawl/:id.
type CrawlStatusResponse struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	CacheStatus string        `json:"cache_status,omitempty"`
	Error       string        `json:"error,omitempty"`
	Results     []*PageResult `json:"results,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	RunningJobs int    `json:"running_jobs"`
	Version     string `json:"version"`
}

// ErrorResponse wraps an ErrorDetail for API error bodies.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
