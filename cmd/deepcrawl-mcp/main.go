// Command deepcrawl-mcp serves the crawler as an MCP tool over stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/config"
	"github.com/use-agent/deepcrawl/crawler"
	"github.com/use-agent/deepcrawl/engine"
	"github.com/use-agent/deepcrawl/models"
	"github.com/use-agent/deepcrawl/report"
)

// Upper bounds for tool arguments.
const (
	maxToolDepth       = 10
	maxToolPages       = 500
	maxToolConcurrency = 16
	defaultToolPages   = 100
)

func main() {
	cfg, err := config.LoadWithFile(os.Getenv("DEEPCRAWL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the MCP protocol; logs must go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	eng := engine.NewHTTPEngine(cfg.Fetch)
	defer eng.Close()

	s := newServer(cfg, eng)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(cfg *config.Config, eng engine.Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"deepcrawl",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	crawlSiteTool := mcp.NewTool("crawl_site",
		mcp.WithDescription("Crawl a website breadth-first from a URL, following links up to a given depth, and return the readable content of every page as one Markdown document."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The seed URL to crawl from"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link hops from the seed URL (default: 1, max: 10)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to crawl (default: 100, max: 500)"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Number of pages fetched in parallel (default: 3, max: 16)"),
		),
		mcp.WithBoolean("include_external",
			mcp.Description("Follow links to other hosts (default: false)"),
		),
		mcp.WithString("extract_mode",
			mcp.Description("Extraction strategies: 'auto' (default), 'readability', 'pruning', 'text' or 'raw'"),
			mcp.Enum(cleaner.ModeAuto, cleaner.ModeReadability, cleaner.ModePruning, cleaner.ModeText, cleaner.ModeRaw),
		),
		mcp.WithString("content_format",
			mcp.Description("Article content format: 'markdown' (default), 'text' or 'markdown_citations'"),
			mcp.Enum(cleaner.FormatMarkdown, cleaner.FormatText, cleaner.FormatMarkdownCitations),
		),
	)
	s.AddTool(crawlSiteTool, handleCrawlSite(cfg, eng))

	return s
}

// intArg reads a numeric argument, clamped to [min, max].
func intArg(request mcp.CallToolRequest, key string, def, lo, hi int) int {
	v, ok := request.GetArguments()[key].(float64)
	if !ok {
		return def
	}
	return min(max(int(v), lo), hi)
}

func handleCrawlSite(cfg *config.Config, eng engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		crawlCfg := models.CrawlConfig{
			SeedURL:         url,
			MaxDepth:        intArg(request, "max_depth", cfg.Crawl.MaxDepth, 0, maxToolDepth),
			MaxPages:        intArg(request, "max_pages", defaultToolPages, 1, maxToolPages),
			Concurrency:     intArg(request, "concurrency", cfg.Crawl.Concurrency, 1, maxToolConcurrency),
			IncludeExternal: request.GetBool("include_external", cfg.Crawl.IncludeExternal),
			ExcludePatterns: cfg.Crawl.ExcludePatterns,
		}

		cl, err := cleaner.New(cleaner.Options{
			Mode:             request.GetString("extract_mode", cfg.Extract.Mode),
			ContentFormat:    request.GetString("content_format", cleaner.FormatMarkdown),
			Selector:         cfg.Extract.Selector,
			ExcludeSelectors: cfg.Extract.ExcludeSelectors,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		cr := crawler.New(crawlCfg, eng, cl)
		cr.FetchTimeout = cfg.Fetch.Timeout

		res, err := cr.Run(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("crawl failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Crawled %d pages (%d ok, %d failed) in %.2fs",
			len(res.Pages), res.OK, res.FetchFailed+res.ExtractFailed, res.Duration.Seconds())
		if res.Aborted {
			sb.WriteString(" (interrupted, partial results)")
		}
		sb.WriteString("\n\n")
		sb.WriteString(report.RenderMarkdown(res.Pages))
		return mcp.NewToolResultText(sb.String()), nil
	}
}
