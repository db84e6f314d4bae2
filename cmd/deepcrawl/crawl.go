package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/deepcrawl/config"
	"github.com/use-agent/deepcrawl/crawler"
	"github.com/use-agent/deepcrawl/models"
	"github.com/use-agent/deepcrawl/report"
)

// defaultOutput is the document written when --output is not given.
const defaultOutput = "crawl_results"

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "crawl [seed-url]",
		Short: "Crawl a site and save the readable content of every page",
		Long: `Crawl fetches the seed URL, follows links breadth-first up to --depth hops
and writes one block per page to a single document.

Only links on the seed's host are followed unless --include-external is set.
Pages that fail to load are still listed, with no content.

Examples:
  # Seed page and everything it links to on the same host
  deepcrawl crawl https://example.com

  # Two levels deep, 8 parallel fetches, JSON output
  deepcrawl crawl https://example.com -d 2 -c 8 --format json -o site.json

  # Skip admin pages and PDFs, keep the output on stdout
  deepcrawl crawl https://example.com --exclude '/admin/*' --exclude '*.pdf' -o -`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()
	// Defaults shown in help reflect the environment; the configuration
	// file is applied at run time and only explicitly set flags override it.
	f.IntP("depth", "d", cfg.Crawl.MaxDepth, "Maximum link hops from the seed (0 = seed only)")
	f.Bool("include-external", cfg.Crawl.IncludeExternal, "Follow links to other hosts")
	f.IntP("concurrency", "c", cfg.Crawl.Concurrency, "Number of pages fetched in parallel")
	f.IntP("max-pages", "p", cfg.Crawl.MaxPages, "Maximum number of pages to crawl (0 = unlimited)")
	f.StringSlice("exclude", cfg.Crawl.ExcludePatterns, "Glob of URL paths to skip (repeatable)")
	f.StringP("output", "o", "", "Output file path, or - for stdout (default crawl_results.md/.json)")
	f.StringP("format", "f", report.FormatMarkdown, "Output format: markdown or json")
	f.String("extract-mode", cfg.Extract.Mode, "Extraction strategies: auto, readability, pruning, text or raw")
	f.String("content", cfg.Extract.ContentFormat, "Article content format: text, markdown or markdown_citations")
	f.String("selector", cfg.Extract.Selector, "CSS selector tried before the other strategies")
	f.StringSlice("exclude-selector", cfg.Extract.ExcludeSelectors, "CSS selector removed before extraction (repeatable)")
	f.DurationP("timeout", "t", cfg.Fetch.Timeout, "Timeout for each page fetch")
	f.Float64("rate-limit", cfg.Fetch.HostRPS, "Requests per second per host (0 = unlimited)")

	return cmd
}

// applyCrawlFlags overrides cfg with the arguments and every flag set on the
// command line.
func applyCrawlFlags(cmd *cobra.Command, args []string, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if len(args) == 1 {
		cfg.Crawl.SeedURL = args[0]
	}

	if f.Changed("depth") {
		if cfg.Crawl.MaxDepth, err = f.GetInt("depth"); err != nil {
			return err
		}
	}
	if f.Changed("include-external") {
		if cfg.Crawl.IncludeExternal, err = f.GetBool("include-external"); err != nil {
			return err
		}
	}
	if f.Changed("concurrency") {
		if cfg.Crawl.Concurrency, err = f.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if f.Changed("max-pages") {
		if cfg.Crawl.MaxPages, err = f.GetInt("max-pages"); err != nil {
			return err
		}
	}
	if f.Changed("exclude") {
		if cfg.Crawl.ExcludePatterns, err = f.GetStringSlice("exclude"); err != nil {
			return err
		}
	}

	if f.Changed("extract-mode") {
		if cfg.Extract.Mode, err = f.GetString("extract-mode"); err != nil {
			return err
		}
	}
	if f.Changed("content") {
		if cfg.Extract.ContentFormat, err = f.GetString("content"); err != nil {
			return err
		}
	}
	if f.Changed("selector") {
		if cfg.Extract.Selector, err = f.GetString("selector"); err != nil {
			return err
		}
	}
	if f.Changed("exclude-selector") {
		if cfg.Extract.ExcludeSelectors, err = f.GetStringSlice("exclude-selector"); err != nil {
			return err
		}
	}

	if f.Changed("timeout") {
		if cfg.Fetch.Timeout, err = f.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if f.Changed("rate-limit") {
		if cfg.Fetch.HostRPS, err = f.GetFloat64("rate-limit"); err != nil {
			return err
		}
	}
	return nil
}

// outputPath resolves the --output flag for format.
func outputPath(output, format string) string {
	if output != "" {
		return output
	}
	if format == report.FormatJSON {
		return defaultOutput + ".json"
	}
	return defaultOutput + ".md"
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCrawlFlags(cmd, args, cfg); err != nil {
		return err
	}
	initLogger(cmd, cfg.Log)

	format, _ := cmd.Flags().GetString("format")
	if format != report.FormatMarkdown && format != report.FormatJSON {
		return &models.ConfigError{Field: "format", Message: fmt.Sprintf("unknown output format %q (want markdown or json)", format)}
	}
	if _, err := cfg.Crawl.Validate(); err != nil {
		return err
	}

	eng, cl, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cr := crawler.New(cfg.Crawl, eng, cl)
	cr.FetchTimeout = cfg.Fetch.Timeout

	res, err := cr.Run(ctx)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\nCrawled %d pages in %.2f seconds\n", len(res.Pages), res.Duration.Seconds())
	if res.Aborted {
		fmt.Fprintln(stderr, "Crawl interrupted; saving partial results")
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "-" {
		return report.Write(cmd.OutOrStdout(), format, res.Pages)
	}

	path := outputPath(output, format)
	if err := report.Save(path, format, res.Pages); err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	fmt.Fprintf(stderr, "Saved %d items to %s\n", len(res.Pages), path)
	return nil
}
