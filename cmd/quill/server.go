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

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/quill/internal/api"
	"github.com/kalambet/quill/internal/config"
	"github.com/kalambet/quill/internal/generate"
	"github.com/kalambet/quill/internal/metrics"
	"github.com/kalambet/quill/internal/profile"
	"github.com/kalambet/quill/internal/proxy"
	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/training"
)

const (
	jobRetention    = 7 * 24 * time.Hour
	jobPruneEvery   = time.Hour
	trainPoll       = 500 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the quill server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running quill server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

// ensureNotRunning fails when something already answers /health on port.
func ensureNotRunning(port int, pid pidFile) error {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return nil
	}
	resp.Body.Close()
	if n, err := pid.read(); err == nil {
		return fmt.Errorf("quill is already running (PID %d)", n)
	}
	return fmt.Errorf("port %d is already serving quill", port)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))
	slog.Info("starting quill", "version", version, "data_dir", cfg.Storage.DataDir)

	token, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	pid := pidFileIn(cfg.Storage.DataDir)
	if err := ensureNotRunning(cfg.Server.Port, pid); err != nil {
		printWarning("%v", err)
		return err
	}
	if err := pid.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pid.remove()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	deps := buildDeps(cfg, store, token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		deps.Trainer.Run(ctx)
		return nil
	})
	g.Go(func() error {
		pruneJobs(ctx, store)
		return nil
	})
	if cfg.Server.MCPStdio {
		g.Go(func() error {
			serveMCPStdio(ctx, deps)
			return nil
		})
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildDeps wires the services behind the HTTP and MCP surfaces.
func buildDeps(cfg config.Config, store *storage.Store, token string) api.Deps {
	m := metrics.New()
	profiles := profile.NewManager(store)

	worker := training.NewWorker(store, profiles, trainPoll, cfg.TrainDebounce())
	worker.SetRecorder(m)

	client := proxy.NewClient(cfg.Proxy.OpenRouterAPIKey, cfg.Proxy.BaseURL)
	client.SetTimeout(cfg.GenerateTimeout())
	if !client.HasKey() {
		slog.Warn("no OpenRouter API key configured, generation will use fallback replies")
	}

	gen := generate.NewService(profiles, client, store, generate.Options{
		Model:     cfg.Proxy.DefaultModel,
		Timeout:   cfg.GenerateTimeout(),
		RateLimit: cfg.Generate.RateLimit,
		Burst:     cfg.Generate.Burst,
	})
	gen.SetRecorder(m)

	return api.Deps{
		Store:      store,
		Profile:    profiles,
		Trainer:    worker,
		Generator:  gen,
		Proxy:      client,
		Metrics:    m,
		MaxSamples: cfg.Style.MaxSamples,
		Token:      token,
	}
}

// serveMCPStdio speaks MCP on stdin/stdout until ctx ends or stdin closes.
// Failures are logged and never take the HTTP server down.
func serveMCPStdio(ctx context.Context, deps api.Deps) {
	stdio := server.NewStdioServer(api.NewMCPServer(deps, version))
	slog.Info("MCP server started", "transport", "stdio")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("MCP stdio server stopped", "error", err)
	}
}

// pruneJobs drops finished training jobs older than jobRetention.
func pruneJobs(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(jobPruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneJobs(time.Now().Add(-jobRetention))
			if err != nil {
				slog.Warn("pruning jobs failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned finished jobs", "count", n)
			}
		}
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pid := pidFileIn(cfg.Storage.DataDir)
	n, err := pid.read()
	if err != nil {
		printError("quill is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	proc, err := os.FindProcess(n)
	if err == nil {
		err = proc.Signal(syscall.SIGTERM)
	}
	if err != nil {
		// The process is gone; the PID file is stale.
		pid.remove()
		return fmt.Errorf("stopping quill (PID %d): %w", n, err)
	}
	printSuccess("Sent stop signal to quill (PID %d)", n)
	return nil
}
