package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/engine"
	"github.com/use-agent/deepcrawl/models"
)

// engineStrategyName marks content that came pre-extracted from the engine.
const engineStrategyName = "engine"

// Crawler runs one crawl configuration. A Crawler may be run more than once;
// every Run starts from an empty frontier.
type Crawler struct {
	cfg     models.CrawlConfig
	engine  engine.Engine
	cleaner *cleaner.Cleaner

	// FetchTimeout bounds each page retrieval. Zero uses the engine default.
	FetchTimeout time.Duration

	// OnResult, when set, is called with every recorded result. It runs on
	// worker goroutines and must be safe for concurrent use.
	OnResult func(models.PageResult)

	onDispatch func(models.CrawlTask)
}

// New creates a Crawler. The configuration is validated by Run.
func New(cfg models.CrawlConfig, eng engine.Engine, cl *cleaner.Cleaner) *Crawler {
	return &Crawler{cfg: cfg, engine: eng, cleaner: cl}
}

// Result is the outcome of a crawl run.
type Result struct {
	// Pages holds one entry per dispatched task, in completion order.
	Pages []models.PageResult

	// Dispatched is the number of tasks handed to workers.
	Dispatched int

	// OK, FetchFailed and ExtractFailed count Pages by status.
	OK            int
	FetchFailed   int
	ExtractFailed int

	// Tokens is the estimated LLM token count of all content.
	Tokens int

	Duration time.Duration

	// Aborted is true when the context was cancelled before the frontier
	// was exhausted; Pages then holds the partial results.
	Aborted bool
}

// Run crawls from the seed until no task is queued and none is in flight.
// Only configuration problems are returned as errors (*models.ConfigError);
// per-page failures are recorded in the result. Cancelling ctx stops new
// dispatches and waits for in-flight tasks to finish.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	seed, err := c.cfg.Validate()
	if err != nil {
		return nil, err
	}
	if c.engine == nil || c.cleaner == nil {
		return nil, errors.New("crawler: engine and cleaner are required")
	}

	start := time.Now()
	frontier := NewFrontier(c.cfg, seed)
	agg := NewAggregator()

	// In-flight tasks finish even after ctx is cancelled.
	taskCtx := context.WithoutCancel(ctx)
	done := make(chan int, c.cfg.Concurrency)

	slog.Info("crawl started",
		"seed", seed.String(),
		"max_depth", c.cfg.MaxDepth,
		"concurrency", c.cfg.Concurrency,
		"include_external", c.cfg.IncludeExternal,
	)

	// running[d] counts in-flight tasks at depth d. A task at depth k is
	// only dispatched once nothing shallower than k-1 is running, since
	// such a task could still offer links at a depth below k.
	running := make([]int, c.cfg.MaxDepth+1)
	inFlight, dispatched := 0, 0
	for {
		for inFlight < c.cfg.Concurrency && ctx.Err() == nil {
			task, ok := frontier.TakeWithin(dispatchLimit(running))
			if !ok {
				break
			}
			running[task.Depth]++
			inFlight++
			dispatched++
			slog.Debug("crawl: dispatch", "url", task.URL, "depth", task.Depth, "in_flight", inFlight)
			if c.onDispatch != nil {
				c.onDispatch(task)
			}
			go c.process(taskCtx, frontier, agg, task, done)
		}
		if inFlight == 0 {
			break
		}
		running[<-done]--
		inFlight--
	}

	res := &Result{
		Pages:      agg.Snapshot(),
		Dispatched: dispatched,
		Duration:   time.Since(start),
		Aborted:    ctx.Err() != nil && frontier.Len() > 0,
	}
	for _, p := range res.Pages {
		switch p.Status {
		case models.StatusOK:
			res.OK++
		case models.StatusFetchFailed:
			res.FetchFailed++
		case models.StatusExtractFailed:
			res.ExtractFailed++
		}
		res.Tokens += cleaner.EstimateTokens(p.Content)
	}

	slog.Info("crawl finished",
		"seed", seed.String(),
		"pages", len(res.Pages),
		"ok", res.OK,
		"fetch_failed", res.FetchFailed,
		"extract_failed", res.ExtractFailed,
		"aborted", res.Aborted,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, nil
}

// process runs fetch, link discovery and extraction for one task and
// records exactly one result. Links are offered before done is signalled so
// the dispatcher never sees an empty frontier while this task can still add
// to it.
func (c *Crawler) process(ctx context.Context, frontier *Frontier, agg *Aggregator, task models.CrawlTask, done chan<- int) {
	defer func() { done <- task.Depth }()

	result := models.PageResult{URL: task.URL, Depth: models.DepthOf(task.Depth)}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("crawl: task panicked", "url", task.URL, "panic", r)
			result.Status = models.StatusExtractFailed
			result.Content = ""
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		c.record(agg, result)
	}()

	fetched, err := c.engine.Fetch(ctx, &engine.FetchRequest{URL: task.URL, Timeout: c.FetchTimeout})
	if err != nil {
		var fe *models.FetchError
		if errors.As(err, &fe) {
			result.StatusCode = fe.StatusCode
		}
		result.Status = models.StatusFetchFailed
		result.Error = err.Error()
		slog.Debug("crawl: fetch failed", "url", task.URL, "error", err)
		return
	}

	result.FinalURL = fetched.FinalURL
	result.StatusCode = fetched.StatusCode
	result.Title = fetched.Title

	if task.Depth == 0 && fetched.FinalURL != "" {
		frontier.SeedRedirected(fetched.FinalURL)
	}

	if task.Depth < c.cfg.MaxDepth {
		base := fetched.FinalURL
		if base == "" {
			base = task.URL
		}
		accepted := 0
		for _, link := range cleaner.ExtractLinks(fetched.HTML, base) {
			if frontier.Offer(link, task.Depth+1) {
				accepted++
			}
		}
		slog.Debug("crawl: links offered", "url", task.URL, "accepted", accepted)
	}

	result.Content, result.Strategy = c.resolveContent(fetched, task.URL)
	if result.Content == "" {
		result.Status = models.StatusExtractFailed
		result.Error = "no content extracted"
		return
	}
	result.Status = models.StatusOK
}

// resolveContent prefers text the engine already extracted, then the
// extractor chain over the raw HTML, then nothing.
func (c *Crawler) resolveContent(fetched *engine.FetchResult, sourceURL string) (string, string) {
	if text := strings.TrimSpace(fetched.Text); text != "" {
		return text, engineStrategyName
	}
	if fetched.FinalURL != "" {
		sourceURL = fetched.FinalURL
	}
	ext := c.cleaner.Extract(fetched.HTML, sourceURL)
	return ext.Text, ext.Strategy
}

// dispatchLimit returns the deepest task depth that may be dispatched given
// the in-flight depth counts: one deeper than the shallowest running task, or any
// depth when nothing runs.
func dispatchLimit(running []int) int {
	for d, n := range running {
		if n > 0 {
			return d + 1
		}
	}
	return len(running)
}

func (c *Crawler) record(agg *Aggregator, result models.PageResult) {
	stored := agg.Record(result)
	if c.OnResult != nil {
		c.OnResult(stored)
	}
}
