package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/deepcrawl/api"
	"github.com/use-agent/deepcrawl/api/handler"
	"github.com/use-agent/deepcrawl/cache"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl HTTP API",
		Long: `Serve starts an HTTP API that runs crawls as background jobs.

Endpoints:
  GET  /api/v1/health
  POST /api/v1/crawl
  GET  /api/v1/crawl/:id
  GET  /api/v1/crawl/:id/markdown

Configuration comes from the configuration file and DEEPCRAWL_* environment
variables.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().IntP("port", "P", 0, "Listen port (overrides DEEPCRAWL_PORT)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	initLogger(cmd, cfg.Log)

	eng, cl, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()
	jobs := handler.NewJobs()
	defer jobs.Close()

	handler.Version = getVersion()
	svc := &handler.CrawlService{
		Engine:       eng,
		Cleaner:      cl,
		Defaults:     cfg.Crawl,
		FetchTimeout: cfg.Fetch.Timeout,
		Cache:        cc,
		Jobs:         jobs,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(svc, cfg, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("deepcrawl starting",
		"addr", addr,
		"mode", cfg.Server.Mode,
		"strategies", cl.Strategies(),
		"auth", cfg.Auth.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := eng.PruneIdleHosts(time.Hour); n > 0 {
					slog.Debug("pruned idle host limiters", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received", "running_jobs", jobs.Running())
		jobs.Close()

		// Give in-flight requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
			return err
		}
		slog.Info("HTTP server drained gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("deepcrawl stopped")
	return nil
}
