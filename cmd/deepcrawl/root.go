package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/deepcrawl/cleaner"
	"github.com/use-agent/deepcrawl/config"
	"github.com/use-agent/deepcrawl/engine"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deepcrawl",
		Short: "Bounded-depth web crawler that saves readable page content",
		Long: `deepcrawl fetches pages breadth-first from a seed URL, follows in-domain
links up to a maximum depth, extracts the readable text of every page and
writes the results into a single Markdown document.

Settings come from built-in defaults, then the configuration file
(--config, ./.deepcrawl.yaml or ~/.config/deepcrawl/config.yaml), then
DEEPCRAWL_* environment variables. Flags override all of them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config, or the default
// locations when the flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadWithFile(path)
}

// newLogger builds the slog logger for cfg, writing to w.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// initLogger installs the default logger. Logs go to stderr so stdout stays
// free for documents.
func initLogger(cmd *cobra.Command, cfg config.LogConfig) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Level = "debug"
	}
	slog.SetDefault(newLogger(os.Stderr, cfg))
}

// newCleaner builds the extractor from the extract configuration.
func newCleaner(cfg config.ExtractConfig) (*cleaner.Cleaner, error) {
	return cleaner.New(cleaner.Options{
		Mode:             cfg.Mode,
		ContentFormat:    cfg.ContentFormat,
		Selector:         cfg.Selector,
		ExcludeSelectors: cfg.ExcludeSelectors,
	})
}

// newPipeline builds the fetch engine and extractor shared by crawl and serve.
func newPipeline(cfg *config.Config) (*engine.HTTPEngine, *cleaner.Cleaner, error) {
	cl, err := newCleaner(cfg.Extract)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Fetch.Proxy != "" && cfg.Fetch.TLSFingerprint {
		slog.Warn("TLS fingerprinting applies only to direct connections when a proxy is set")
	}
	return engine.NewHTTPEngine(cfg.Fetch), cl, nil
}
