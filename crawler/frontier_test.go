package crawler

import (
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/use-agent/deepcrawl/models"
)

func newTestFrontier(t *testing.T, cfg models.CrawlConfig) *Frontier {
	t.Helper()
	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	return NewFrontier(cfg, seed)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "https://Example.COM", want: "https://example.com/"},
		{in: "HTTP://example.com:80/a#frag", want: "http://example.com/a"},
		{in: "https://example.com:443/a?b=1", want: "https://example.com/a"},
		{in: "https://example.com/a?", want: "https://example.com/a"},
		{in: "https://example.com:8443/", want: "https://example.com:8443/"},
		{in: "mailto:me@example.com", wantErr: true},
		{in: "/relative", wantErr: true},
		{in: "http://[::1:bad", wantErr: true},
	}
	for _, tt := range tests {
		got, _, err := Normalize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Normalize(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrontier_Offer(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{
		SeedURL:         "https://example.com/",
		MaxDepth:        2,
		ExcludePatterns: []string{"/admin/*", "*.pdf"},
	})

	tests := []struct {
		url   string
		depth int
		want  bool
	}{
		{"https://example.com/", 1, false},
		{"https://example.com/#top", 1, false},
		{"https://example.com/a", 1, true},
		{"https://example.com/a", 2, false},
		{"https://example.com/b", 3, false},
		{"https://other.com/", 1, false},
		{"https://EXAMPLE.com/c", 2, true},
		{"https://example.com/q?x=1", 1, true},
		{"https://example.com/q?x=2", 1, false},
		{"https://example.com/q", 2, false},
		{"https://example.com/admin/users", 1, false},
		{"https://example.com/files/report.pdf", 1, false},
		{"javascript:alert(1)", 1, false},
	}
	for _, tt := range tests {
		if got := f.Offer(tt.url, tt.depth); got != tt.want {
			t.Errorf("Offer(%q, %d) = %v, want %v", tt.url, tt.depth, got, tt.want)
		}
	}
	if f.Visited() != 4 || f.Len() != 4 {
		t.Errorf("Visited=%d Len=%d, want 4/4", f.Visited(), f.Len())
	}
}

func TestFrontier_SeedRedirected(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{SeedURL: "http://example.com/", MaxDepth: 1, MaxPages: 2})
	f.Take()

	if f.Offer("https://www.example.com/about", 1) {
		t.Fatal("redirect host accepted before the seed redirected")
	}
	f.SeedRedirected("https://www.example.com/home")

	if f.Offer("https://www.example.com/home", 1) {
		t.Error("seed landing page offered again")
	}
	if !f.Offer("https://www.example.com/about", 1) {
		t.Error("link on the seed's redirect host rejected")
	}
	if f.Visited() != 2 {
		t.Errorf("Visited = %d, want 2", f.Visited())
	}
	if f.Offer("https://other.com/", 1) {
		t.Error("unrelated host accepted")
	}
}

func TestFrontier_TakeShallowestFirst(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 3})
	f.Offer("https://example.com/d2", 2)
	f.Offer("https://example.com/d1a", 1)
	f.Offer("https://example.com/d1b", 1)

	want := []string{
		"https://example.com/",
		"https://example.com/d1a",
		"https://example.com/d1b",
		"https://example.com/d2",
	}
	for _, w := range want {
		task, ok := f.Take()
		if !ok || task.URL != w {
			t.Fatalf("Take() = %+v, %v; want %s", task, ok, w)
		}
	}
	if _, ok := f.Take(); ok {
		t.Error("Take() on empty frontier returned a task")
	}
}

func TestFrontier_TakeWithin(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 3})
	f.Take()
	f.Offer("https://example.com/deep", 2)

	if _, ok := f.TakeWithin(1); ok {
		t.Error("TakeWithin(1) returned a depth-2 task")
	}
	if task, ok := f.TakeWithin(2); !ok || task.Depth != 2 {
		t.Errorf("TakeWithin(2) = %+v, %v", task, ok)
	}
}

func TestFrontier_MaxPages(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 1, MaxPages: 2})
	if !f.Offer("https://example.com/a", 1) {
		t.Error("second URL should fit the budget")
	}
	if f.Offer("https://example.com/b", 1) {
		t.Error("third URL should exceed the budget")
	}
}

func TestFrontier_ConcurrentOfferAtMostOnce(t *testing.T) {
	f := newTestFrontier(t, models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 1})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if f.Offer(fmt.Sprintf("https://example.com/p%d", i), 1) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if accepted != 100 {
		t.Errorf("accepted %d offers, want 100", accepted)
	}
	if f.Len() != 101 {
		t.Errorf("Len() = %d, want 101", f.Len())
	}
}

func TestAggregator_NearDuplicates(t *testing.T) {
	agg := NewAggregator()
	text := "gophers dig long tunnels under the meadow and eat roots all summer long"

	first := agg.Record(models.PageResult{URL: "https://example.com/a", Status: models.StatusOK, Content: text})
	second := agg.Record(models.PageResult{URL: "https://example.com/b", Status: models.StatusOK, Content: text})
	failed := agg.Record(models.PageResult{URL: "https://example.com/c", Status: models.StatusFetchFailed})

	if first.Fingerprint == 0 || first.DuplicateOf != "" {
		t.Errorf("first = %+v", first)
	}
	if second.DuplicateOf != "https://example.com/a" {
		t.Errorf("second.DuplicateOf = %q", second.DuplicateOf)
	}
	if failed.Fingerprint != 0 || failed.DuplicateOf != "" {
		t.Errorf("failed = %+v", failed)
	}

	snap := agg.Snapshot()
	if len(snap) != 3 || agg.Len() != 3 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	snap[0].URL = "mutated"
	if agg.Snapshot()[0].URL != "https://example.com/a" {
		t.Error("Snapshot shares storage with the aggregator")
	}
}
