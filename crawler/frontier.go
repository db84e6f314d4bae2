package crawler

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/use-agent/deepcrawl/models"
)

var errUnsupportedURL = errors.New("crawler: not an absolute http(s) URL")

// Frontier is the queue of accepted crawl tasks plus the set of every URL
// ever accepted. Tasks are kept in one FIFO per depth and always taken from
// the shallowest non-empty one, so the dispatch order is breadth-first and
// same-depth siblings keep their discovery order. Offer and Take may be
// called from any goroutine.
type Frontier struct {
	maxDepth        int
	includeExternal bool
	maxPages        int
	exclude         []string

	mu       sync.Mutex
	hosts    map[string]struct{}
	visited  map[string]struct{}
	accepted int
	levels   [][]models.CrawlTask
	queued   int
}

// NewFrontier creates a frontier for cfg and enqueues seed at depth 0. The
// seed is exempt from exclude patterns but counts against MaxPages.
func NewFrontier(cfg models.CrawlConfig, seed *url.URL) *Frontier {
	f := &Frontier{
		maxDepth:        cfg.MaxDepth,
		includeExternal: cfg.IncludeExternal,
		maxPages:        cfg.MaxPages,
		exclude:         append([]string(nil), cfg.ExcludePatterns...),
		hosts:           make(map[string]struct{}),
		visited:         make(map[string]struct{}),
		levels:          make([][]models.CrawlTask, max(cfg.MaxDepth, 0)+1),
	}

	norm, u, err := Normalize(seed.String())
	if err != nil {
		return f
	}
	f.hosts[u.Host] = struct{}{}
	f.visited[norm] = struct{}{}
	f.accepted++
	f.push(models.CrawlTask{URL: norm, Depth: 0})
	return f
}

// Normalize canonicalizes rawURL for deduplication to scheme, host and path:
// scheme and host are lower-cased, default ports, the query and the fragment
// are dropped, and an empty path becomes "/".
func Normalize(rawURL string) (string, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, errUnsupportedURL
	}

	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), u, nil
}

// Offer accepts rawURL at depth unless it is malformed, deeper than
// MaxDepth, already seen, external while IncludeExternal is off, excluded by
// a pattern, or over the MaxPages budget. It reports whether the URL was
// queued. The check and the insert are atomic.
func (f *Frontier) Offer(rawURL string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	norm, u, err := Normalize(rawURL)
	if err != nil {
		return false
	}
	if isExcluded(u, norm, f.exclude) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, inDomain := f.hosts[u.Host]; !f.includeExternal && !inDomain {
		return false
	}
	if _, seen := f.visited[norm]; seen {
		return false
	}
	if f.maxPages > 0 && f.accepted >= f.maxPages {
		return false
	}
	f.visited[norm] = struct{}{}
	f.accepted++
	f.push(models.CrawlTask{URL: norm, Depth: depth})
	return true
}

// SeedRedirected records where the seed ended up after redirects. The final
// host becomes in-domain and the final URL is marked as seen, without
// counting against MaxPages.
func (f *Frontier) SeedRedirected(finalURL string) {
	norm, u, err := Normalize(finalURL)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[u.Host] = struct{}{}
	f.visited[norm] = struct{}{}
}

func (f *Frontier) push(task models.CrawlTask) {
	f.levels[task.Depth] = append(f.levels[task.Depth], task)
	f.queued++
}

// Take pops the oldest task of the shallowest queued depth. It returns
// false when the queue is empty; whether more work can still arrive is up to
// the caller, who knows how many tasks are in flight.
func (f *Frontier) Take() (models.CrawlTask, bool) {
	return f.TakeWithin(f.maxDepth)
}

// TakeWithin is Take restricted to tasks no deeper than limit.
func (f *Frontier) TakeWithin(limit int) (models.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit > f.maxDepth {
		limit = f.maxDepth
	}
	for d := 0; d <= limit; d++ {
		level := f.levels[d]
		if len(level) == 0 {
			continue
		}
		task := level[0]
		level[0] = models.CrawlTask{}
		f.levels[d] = level[1:]
		f.queued--
		return task, true
	}
	return models.CrawlTask{}, false
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queued
}

// Visited returns the number of URLs ever accepted, including the seed.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

// isExcluded matches each glob against the URL path and the full URL.
// Patterns without a slash are also matched against the last path segment,
// so "*.pdf" excludes "/files/report.pdf".
func isExcluded(u *url.URL, full string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, u.Path); matched {
			return true
		}
		if matched, _ := path.Match(pattern, full); matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, _ := path.Match(pattern, path.Base(u.Path)); matched {
				return true
			}
		}
	}
	return false
}
