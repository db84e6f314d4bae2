package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/deepcrawl/cache"
	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/crawler"
	"github.com/use-agent/deepcrawl/engine"
	"github.com/use-agent/deepcrawl/models"
	"github.com/use-agent/deepcrawl/report"
	"github.com/use-agent/deepcrawl/webhook"
)

// defaultMaxPages caps API crawls that do not set max_pages.
const defaultMaxPages = 100

// CrawlService bundles what the crawl handlers need to start a run.
type CrawlService struct {
	Engine  engine.Engine
	Cleaner *cleaner.Cleaner

	// Defaults fills in request fields that are not set.
	Defaults models.CrawlConfig

	FetchTimeout time.Duration

	// Cache is optional.
	Cache *cache.Cache

	Jobs *Jobs
}

// config merges a request over the service defaults.
func (s *CrawlService) config(req *models.CrawlRequest) models.CrawlConfig {
	cfg := s.Defaults
	cfg.SeedURL = req.URL
	if req.MaxDepth != nil {
		cfg.MaxDepth = *req.MaxDepth
	}
	if req.IncludeExternal {
		cfg.IncludeExternal = true
	}
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	switch {
	case req.MaxPages > 0:
		cfg.MaxPages = req.MaxPages
	case cfg.MaxPages == 0:
		cfg.MaxPages = defaultMaxPages
	}
	if len(req.ExcludePatterns) > 0 {
		cfg.ExcludePatterns = req.ExcludePatterns
	}
	return cfg
}

func (s *CrawlService) cacheKey(cfg models.CrawlConfig) string {
	return cache.Key(cfg, strings.Join(s.Cleaner.Strategies(), ","))
}

// PostCrawl returns a handler for POST /api/v1/crawl.
func PostCrawl(svc *CrawlService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CrawlResponse{
				Status: StatusFailed,
				Error:  &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		cfg := svc.config(&req)
		if _, err := cfg.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, models.CrawlResponse{
				Status: StatusFailed,
				Error:  &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		j := svc.Jobs.create()
		key := svc.cacheKey(cfg)

		if svc.Cache != nil {
			if pages, ok := svc.Cache.Get(key, req.CacheMaxAgeMs); ok {
				j.fromCache(pages)
				slog.Info("crawl served from cache", "id", j.id, "url", cfg.SeedURL, "pages", len(pages))
				c.JSON(http.StatusOK, models.CrawlResponse{ID: j.id, Status: j.snapshot().status})
				return
			}
		}

		go runCrawl(svc, j, cfg, req, key)

		c.JSON(http.StatusOK, models.CrawlResponse{
			ID:     j.id,
			Status: StatusProcessing,
		})
	}
}

// runCrawl executes a crawl job in the background.
func runCrawl(svc *CrawlService, j *job, cfg models.CrawlConfig, req models.CrawlRequest, key string) {
	cr := crawler.New(cfg, svc.Engine, svc.Cleaner)
	cr.FetchTimeout = svc.FetchTimeout
	cr.OnResult = j.add

	res, err := cr.Run(svc.Jobs.ctx)
	if err != nil {
		j.fail(err)
		slog.Error("crawl job failed", "id", j.id, "error", err)
		notify(req, j.id, webhook.EventCrawlFailed, gin.H{"error": err.Error()})
		return
	}

	if svc.Cache != nil && !res.Aborted && jobStatus(len(res.Pages), res.FetchFailed+res.ExtractFailed) != StatusFailed {
		svc.Cache.Set(key, res.Pages)
	}
	status := j.finish(res)

	slog.Info("crawl job finished",
		"id", j.id,
		"status", status,
		"pages", len(res.Pages),
		"duration", res.Duration.Round(time.Millisecond),
	)

	event := webhook.EventCrawlCompleted
	if status == StatusFailed {
		event = webhook.EventCrawlFailed
	}
	notify(req, j.id, event, gin.H{
		"status":         status,
		"pages":          len(res.Pages),
		"ok":             res.OK,
		"fetch_failed":   res.FetchFailed,
		"extract_failed": res.ExtractFailed,
		"tokens":         res.Tokens,
	})
}

func notify(req models.CrawlRequest, jobID, eventType string, data any) {
	if req.WebhookURL == "" {
		return
	}
	webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
		Type:      eventType,
		JobID:     jobID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
func GetCrawl(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, ok := jobs.get(c.Param("id"))
		if !ok {
			notFound(c)
			return
		}

		v := j.snapshot()
		results := make([]*models.PageResult, len(v.pages))
		for i := range v.pages {
			results[i] = &v.pages[i]
		}
		c.JSON(http.StatusOK, models.CrawlStatusResponse{
			ID:          j.id,
			Status:      v.status,
			Completed:   len(v.pages),
			Failed:      v.failed,
			CacheStatus: v.cacheStatus,
			Error:       v.errMsg,
			Results:     results,
		})
	}
}

// GetCrawlMarkdown returns a handler for GET /api/v1/crawl/:id/markdown.
// It renders whatever has been recorded so far.
func GetCrawlMarkdown(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, ok := jobs.get(c.Param("id"))
		if !ok {
			notFound(c)
			return
		}
		v := j.snapshot()
		c.Header("X-Crawl-Status", v.status)
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.RenderMarkdown(v.pages)))
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeNotFound,
			Message: "crawl job not found",
		},
	})
}
