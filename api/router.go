package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/deepcrawl/api/handler"
	"github.com/use-agent/deepcrawl/api/middleware"
	"github.com/use-agent/deepcrawl/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(svc *handler.CrawlService, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if gin.Mode() != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(svc.Jobs, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/crawl", handler.PostCrawl(svc))
	protected.GET("/crawl/:id", handler.GetCrawl(svc.Jobs))
	protected.GET("/crawl/:id/markdown", handler.GetCrawlMarkdown(svc.Jobs))

	return r
}
