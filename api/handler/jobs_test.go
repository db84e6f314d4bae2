package handler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/engine"
	"github.com/use-agent/deepcrawl/models"
)

type countingEngine struct {
	calls atomic.Int32
}

func (e *countingEngine) Name() string { return "counting" }

func (e *countingEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	e.calls.Add(1)
	return &engine.FetchResult{HTML: "<p>ok</p>", StatusCode: 200, FinalURL: req.URL}, nil
}

func TestJobs_CloseStopsCrawls(t *testing.T) {
	cl, err := cleaner.New(cleaner.Options{Mode: cleaner.ModeText})
	if err != nil {
		t.Fatal(err)
	}
	eng := &countingEngine{}
	jobs := NewJobs()
	svc := &CrawlService{Engine: eng, Cleaner: cl, Jobs: jobs}

	jobs.Close()

	j := jobs.create()
	cfg := models.CrawlConfig{SeedURL: "https://example.com/", MaxDepth: 1, Concurrency: 2}
	runCrawl(svc, j, cfg, models.CrawlRequest{}, "")

	if n := eng.calls.Load(); n != 0 {
		t.Errorf("engine called %d times after Close", n)
	}
	if v := j.snapshot(); v.status != StatusPartial || len(v.pages) != 0 {
		t.Errorf("status = %q, pages = %d; want partial with no pages", v.status, len(v.pages))
	}
}

func TestJobs_ExpireKeepsRunningJobs(t *testing.T) {
	jobs := NewJobs()
	defer jobs.Close()

	running := jobs.create()
	done := jobs.create()
	done.fail(context.Canceled)

	jobs.expire(-time.Minute)

	if _, ok := jobs.get(running.id); !ok {
		t.Error("processing job was expired")
	}
	if _, ok := jobs.get(done.id); ok {
		t.Error("finished job was not expired")
	}
}
