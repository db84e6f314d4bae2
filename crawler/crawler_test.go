package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/config"
	"github.com/use-agent/deepcrawl/engine"
	"github.com/use-agent/deepcrawl/models"
)

// fakeEngine serves pages from a map and records every fetch.
type fakeEngine struct {
	pages map[string]string
	fail  map[string]bool
	delay time.Duration
	text  string

	mu    sync.Mutex
	calls []string
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req.URL)
	e.mu.Unlock()

	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail[req.URL] {
		return nil, &models.FetchError{URL: req.URL, Err: fmt.Errorf("connection refused")}
	}
	page, ok := e.pages[req.URL]
	if !ok {
		return nil, &models.FetchError{URL: req.URL, StatusCode: http.StatusNotFound, Err: fmt.Errorf("unexpected status 404")}
	}
	return &engine.FetchResult{HTML: page, StatusCode: http.StatusOK, FinalURL: req.URL, Text: e.text}, nil
}

func (e *fakeEngine) fetched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func page(body string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><p>")
	b.WriteString(body)
	b.WriteString("</p>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func textCleaner(t *testing.T) *cleaner.Cleaner {
	t.Helper()
	cl, err := cleaner.New(cleaner.Options{Mode: cleaner.ModeText})
	if err != nil {
		t.Fatalf("cleaner.New: %v", err)
	}
	return cl
}

func run(t *testing.T, cfg models.CrawlConfig, eng engine.Engine) *Result {
	t.Helper()
	res, err := New(cfg, eng, textCleaner(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func byURL(pages []models.PageResult) map[string]models.PageResult {
	m := make(map[string]models.PageResult, len(pages))
	for _, p := range pages {
		m[p.URL] = p
	}
	return m
}

func TestRun_InDomainScenario(t *testing.T) {
	eng := &fakeEngine{pages: map[string]string{
		"https://example.com/":      page("Home page", "/about", "https://other.com"),
		"https://example.com/about": page("About us", "/"),
		"https://other.com/":        page("Elsewhere"),
	}}
	cfg := models.CrawlConfig{SeedURL: "https://example.com", MaxDepth: 1, Concurrency: 2}

	res := run(t, cfg, eng)

	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2: %+v", len(res.Pages), res.Pages)
	}
	pages := byURL(res.Pages)
	seed, about := pages["https://example.com/"], pages["https://example.com/about"]
	if seed.Depth == nil || *seed.Depth != 0 {
		t.Errorf("seed depth = %v, want 0", seed.Depth)
	}
	if about.Depth == nil || *about.Depth != 1 {
		t.Errorf("about depth = %v, want 1", about.Depth)
	}
	if about.Status != models.StatusOK || about.Content != "About us\n\nlink" {
		t.Errorf("about = %+v", about)
	}
	for _, u := range eng.fetched() {
		if strings.Contains(u, "other.com") {
			t.Errorf("external URL fetched: %s", u)
		}
	}
}

func TestRun_IncludeExternal(t *testing.T) {
	eng := &fakeEngine{pages: map[string]string{
		"https://example.com/": page("Home", "https://other.com/x"),
		"https://other.com/x":  page("External"),
	}}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 1, Concurrency: 2, IncludeExternal: true}

	res := run(t, cfg, eng)
	if len(res.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(res.Pages))
	}
	if _, ok := byURL(res.Pages)["https://other.com/x"]; !ok {
		t.Error("external page missing")
	}
}

func TestRun_SeedFetchFails(t *testing.T) {
	eng := &fakeEngine{fail: map[string]bool{"https://example.com/": true}}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 3, Concurrency: 4}

	res := run(t, cfg, eng)

	if len(res.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(res.Pages))
	}
	p := res.Pages[0]
	if p.Status != models.StatusFetchFailed || p.Content != "" || p.Error == "" {
		t.Errorf("seed result = %+v", p)
	}
	if res.FetchFailed != 1 || res.Aborted {
		t.Errorf("result stats = %+v", res)
	}
}

func TestRun_MaxDepthZero(t *testing.T) {
	eng := &fakeEngine{pages: map[string]string{
		"https://example.com/":  page("Home", "/a", "/b"),
		"https://example.com/a": page("A"),
		"https://example.com/b": page("B"),
	}}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 0, Concurrency: 3}

	run(t, cfg, eng)

	if got := eng.fetched(); len(got) != 1 || got[0] != "https://example.com/" {
		t.Errorf("fetched = %v, want only the seed", got)
	}
}

// meshSite builds n pages that each link to several others, themselves,
// fragment variants and a missing page.
func meshSite(n int) map[string]string {
	pages := make(map[string]string, n)
	for i := 0; i < n; i++ {
		links := []string{
			fmt.Sprintf("/p%d", (i+1)%n),
			fmt.Sprintf("/p%d", (i*3+2)%n),
			fmt.Sprintf("/p%d#section", (i+5)%n),
			fmt.Sprintf("/p%d", i),
			"/",
			"/missing",
		}
		key := fmt.Sprintf("https://example.com/p%d", i)
		if i == 0 {
			key = "https://example.com/"
		}
		pages[key] = page(fmt.Sprintf("Page number %d", i), links...)
	}
	return pages
}

func TestRun_DepthBoundAtMostOnceCompleteness(t *testing.T) {
	eng := &fakeEngine{pages: meshSite(30), delay: time.Millisecond}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 2, Concurrency: 5}

	res := run(t, cfg, eng)

	calls := eng.fetched()
	seen := make(map[string]bool)
	for _, u := range calls {
		if seen[u] {
			t.Errorf("fetched twice: %s", u)
		}
		seen[u] = true
	}
	if len(res.Pages) != res.Dispatched || len(calls) != res.Dispatched {
		t.Errorf("pages=%d dispatched=%d fetches=%d, want equal", len(res.Pages), res.Dispatched, len(calls))
	}
	for _, p := range res.Pages {
		if p.Depth == nil || *p.Depth > cfg.MaxDepth {
			t.Errorf("page %s has depth %v beyond %d", p.URL, p.Depth, cfg.MaxDepth)
		}
	}
	if pages := byURL(res.Pages); pages["https://example.com/missing"].Status != models.StatusFetchFailed {
		t.Errorf("missing page status = %q", pages["https://example.com/missing"].Status)
	}
}

func TestRun_BreadthFirstDispatchOrder(t *testing.T) {
	for _, concurrency := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			eng := &fakeEngine{pages: meshSite(40), delay: 2 * time.Millisecond}
			cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 4, Concurrency: concurrency}

			var (
				mu     sync.Mutex
				depths []int
			)
			c := New(cfg, eng, textCleaner(t))
			c.onDispatch = func(task models.CrawlTask) {
				mu.Lock()
				depths = append(depths, task.Depth)
				mu.Unlock()
			}
			if _, err := c.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}

			for i := 1; i < len(depths); i++ {
				if depths[i] < depths[i-1] {
					t.Fatalf("dispatch %d at depth %d after depth %d: %v", i, depths[i], depths[i-1], depths)
				}
			}
		})
	}
}

func TestRun_SiblingOrderWithSingleWorker(t *testing.T) {
	eng := &fakeEngine{pages: map[string]string{
		"https://example.com/":  page("root", "/b", "/a"),
		"https://example.com/a": page("a", "/c"),
		"https://example.com/b": page("b", "/d"),
		"https://example.com/c": page("c"),
		"https://example.com/d": page("d"),
	}}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 2, Concurrency: 1}

	run(t, cfg, eng)

	want := []string{
		"https://example.com/",
		"https://example.com/b",
		"https://example.com/a",
		"https://example.com/d",
		"https://example.com/c",
	}
	if got := eng.fetched(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("fetch order = %v, want %v", got, want)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	eng := &fakeEngine{}
	for _, cfg := range []models.CrawlConfig{
		{SeedURL: "https://example.com/", Concurrency: 0},
		{SeedURL: "https://example.com/", Concurrency: 1, MaxDepth: -1},
		{SeedURL: "not a url", Concurrency: 1},
		{SeedURL: "ftp://example.com/", Concurrency: 1},
	} {
		_, err := New(cfg, eng, textCleaner(t)).Run(context.Background())
		if !models.IsConfigError(err) {
			t.Errorf("Run(%+v) err = %v, want ConfigError", cfg, err)
		}
	}
	if n := len(eng.fetched()); n != 0 {
		t.Errorf("config errors caused %d fetches", n)
	}
}

func TestRun_CancelReturnsPartialResults(t *testing.T) {
	eng := &fakeEngine{pages: meshSite(50), delay: 20 * time.Millisecond}
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 5, Concurrency: 2}

	ctx, cancel := context.WithCancel(context.Background())
	c := New(cfg, eng, textCleaner(t))
	var once sync.Once
	c.OnResult = func(models.PageResult) { once.Do(cancel) }

	res, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Aborted {
		t.Error("Aborted = false, want true")
	}
	if len(res.Pages) != res.Dispatched {
		t.Errorf("pages=%d dispatched=%d; in-flight tasks must drain", len(res.Pages), res.Dispatched)
	}
	if res.Dispatched > 3 {
		t.Errorf("dispatched %d tasks after cancel", res.Dispatched)
	}
	for _, p := range res.Pages {
		if p.Status != models.StatusOK {
			t.Errorf("drained task %s status %q", p.URL, p.Status)
		}
	}
}

func TestRun_ContentResolution(t *testing.T) {
	t.Run("engine text wins", func(t *testing.T) {
		eng := &fakeEngine{
			pages: map[string]string{"https://example.com/": page("html body")},
			text:  "  pre-extracted  ",
		}
		res := run(t, models.CrawlConfig{SeedURL: "https://example.com/", Concurrency: 1}, eng)
		p := res.Pages[0]
		if p.Content != "pre-extracted" || p.Strategy != engineStrategyName {
			t.Errorf("page = %+v", p)
		}
	})

	t.Run("blank body is extract failure", func(t *testing.T) {
		eng := &fakeEngine{pages: map[string]string{"https://example.com/": "   "}}
		res := run(t, models.CrawlConfig{SeedURL: "https://example.com/", Concurrency: 1}, eng)
		p := res.Pages[0]
		if p.Status != models.StatusExtractFailed || p.Content != "" {
			t.Errorf("page = %+v", p)
		}
	})
}

// panicEngine panics on every fetch.
type panicEngine struct{}

func (panicEngine) Name() string { return "panic" }

func (panicEngine) Fetch(context.Context, *engine.FetchRequest) (*engine.FetchResult, error) {
	panic("engine exploded")
}

func TestRun_TaskPanicIsContained(t *testing.T) {
	res := run(t, models.CrawlConfig{SeedURL: "https://example.com/", Concurrency: 1}, panicEngine{})
	if len(res.Pages) != 1 || res.Pages[0].Status != models.StatusExtractFailed {
		t.Errorf("pages = %+v", res.Pages)
	}
}

func TestRun_MaxPages(t *testing.T) {
	eng := &fakeEngine{pages: meshSite(30)}
	res := run(t, models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 5, Concurrency: 4, MaxPages: 7}, eng)
	if len(res.Pages) != 7 {
		t.Errorf("got %d pages, want 7", len(res.Pages))
	}
}

func TestRun_HTTPEngineEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page("Welcome to the test site", "/docs", "/old", "/missing", "https://external.invalid/"))
	})
	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page("Documentation", "/"))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs", http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng := engine.NewHTTPEngine(config.FetchConfig{Timeout: 5 * time.Second})
	defer eng.Close()

	cfg := models.CrawlConfig{SeedURL: srv.URL, MaxDepth: 1, Concurrency: 2}
	res, err := New(cfg, eng, textCleaner(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	pages := byURL(res.Pages)
	if len(pages) != 4 {
		t.Fatalf("got %d pages, want 4: %+v", len(pages), res.Pages)
	}
	if p := pages[srv.URL+"/missing"]; p.Status != models.StatusFetchFailed || p.StatusCode != http.StatusNotFound {
		t.Errorf("missing = %+v", p)
	}
	if p := pages[srv.URL+"/old"]; p.FinalURL != srv.URL+"/docs" || p.Status != models.StatusOK {
		t.Errorf("redirected page = %+v", p)
	}
	if p := pages[srv.URL+"/"]; !strings.Contains(p.Content, "Welcome to the test site") {
		t.Errorf("seed content = %q", p.Content)
	}
}

func TestRun_SeedRedirectToAnotherHost(t *testing.T) {
	landing := http.NewServeMux()
	landing.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page("Landing page", "/about", "/"))
		case "/about":
			fmt.Fprint(w, page("About us"))
		default:
			http.NotFound(w, r)
		}
	})
	target := httptest.NewServer(landing)
	defer target.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/", http.StatusMovedPermanently)
	}))
	defer origin.Close()

	eng := engine.NewHTTPEngine(config.FetchConfig{Timeout: 5 * time.Second})
	defer eng.Close()

	cfg := models.CrawlConfig{SeedURL: origin.URL, MaxDepth: 1, Concurrency: 2}
	res, err := New(cfg, eng, textCleaner(t)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	pages := byURL(res.Pages)
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want seed and /about: %+v", len(pages), res.Pages)
	}
	if p, ok := pages[target.URL+"/about"]; !ok || p.Status != models.StatusOK || p.Depth == nil || *p.Depth != 1 {
		t.Errorf("about = %+v", p)
	}
}
