package cache

import (
	"testing"
	"time"

	"github.com/use-agent/deepcrawl/models"
)

func TestKey(t *testing.T) {
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 1, Concurrency: 2}

	if Key(cfg, "auto") != Key(cfg, "auto") {
		t.Error("Key is not deterministic")
	}
	if Key(cfg, "auto") == Key(cfg, "text") {
		t.Error("extractor signature ignored")
	}
	deeper := cfg
	deeper.MaxDepth = 2
	if Key(cfg, "auto") == Key(deeper, "auto") {
		t.Error("crawl config ignored")
	}
}

func TestCache_GetSet(t *testing.T) {
	c := New(10)
	defer c.Close()

	pages := []models.PageResult{{URL: "https://example.com/", Content: "hi", Status: models.StatusOK}}
	c.Set("k", pages)
	pages[0].Content = "mutated"

	if _, ok := c.Get("k", 0); ok {
		t.Error("maxAge 0 should skip the lookup")
	}
	got, ok := c.Get("k", 60_000)
	if !ok || len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("Get = %+v, %v", got, ok)
	}
	if _, ok := c.Get("missing", 60_000); ok {
		t.Error("unexpected hit for missing key")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(10)
	defer c.Close()

	c.Set("k", nil)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k", 1); ok {
		t.Error("entry older than max age was returned")
	}
	if n := c.evictOlderThan(time.Millisecond); n != 1 || c.Len() != 0 {
		t.Errorf("evicted %d, Len %d", n, c.Len())
	}
}

func TestCache_Capacity(t *testing.T) {
	c := New(2)
	defer c.Close()

	c.Set("a", nil)
	c.Set("b", nil)
	c.Set("b", nil)
	if c.Len() != 2 {
		t.Fatalf("overwriting a key evicted another, Len = %d", c.Len())
	}
	c.Set("c", nil)
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c", 60_000); !ok {
		t.Error("newest entry missing")
	}
}
