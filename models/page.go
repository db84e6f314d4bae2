package models

// PageStatus classifies how a crawled page ended up.
type PageStatus string

const (
	// StatusOK means the page was fetched and content was resolved.
	StatusOK PageStatus = "ok"

	// StatusFetchFailed means the fetch itself failed (transport, timeout,
	// non-2xx status, non-HTML body). Content is always empty.
	StatusFetchFailed PageStatus = "fetch_failed"

	// StatusExtractFailed means the page was fetched but no content could
	// be resolved from it.
	StatusExtractFailed PageStatus = "extract_failed"
)

// CrawlTask is a single unit of work handed to a crawl worker.
type CrawlTask struct {
	// URL is the normalized absolute URL to fetch.
	URL string `json:"url"`

	// Depth is the number of link hops from the seed URL.
	Depth int `json:"depth"`
}

// PageResult is the outcome of processing one CrawlTask.
// It is never mutated after being recorded.
type PageResult struct {
	// URL is the task URL (as accepted into the frontier).
	URL string `json:"url"`

	// Depth is the depth at which URL was first accepted. Nil means unknown.
	Depth *int `json:"depth,omitempty"`

	// Content is the resolved readable text of the page.
	Content string `json:"content"`

	// Status reports whether the page succeeded.
	Status PageStatus `json:"status"`

	// FinalURL is the URL after redirects. Empty on fetch failure.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status of the response, when one was received.
	StatusCode int `json:"status_code,omitempty"`

	// Title is the document <title>.
	Title string `json:"title,omitempty"`

	// Strategy names the extractor that produced Content.
	Strategy string `json:"strategy,omitempty"`

	// Fingerprint is the SimHash of Content (0 when Content is empty).
	Fingerprint uint64 `json:"fingerprint,omitempty"`

	// DuplicateOf is the URL of an earlier page with near-identical content.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// Error describes the failure for non-ok pages.
	Error string `json:"error,omitempty"`
}

// DepthOf returns a pointer to d, for building PageResult.Depth.
func DepthOf(d int) *int {
	return &d
}
