// Package main provides the entry point for the LifeStream dispatcher:
// the long-running consumer that moves queued jobs to dispatched and
// launches their processing tasks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lifestream/core/internal/bootstrap"
	"github.com/lifestream/core/internal/config"
	"github.com/lifestream/core/internal/dispatcher"
	"github.com/lifestream/core/internal/metrics"
	"github.com/lifestream/core/internal/orchestrator"
	"github.com/lifestream/core/internal/tasklauncher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting LifeStream dispatcher",
		slog.Int("max_concurrent_tasks", cfg.MaxConcurrentTasks),
		slog.Bool("ecs_enabled", cfg.TaskLauncherEnabled()),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := metrics.New()
	go serveMetrics(ctx, cfg.MetricsPort, reg, logger)

	// When no ECS cluster is configured, the dispatcher runs the
	// orchestrator in-process for each dispatched job (local development).
	var runOrchestrator tasklauncher.RunFunc
	if !cfg.TaskLauncherEnabled() {
		runOrchestrator, err = inProcessOrchestratorRun(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("prepare in-process orchestrator: %w", err)
		}
	}

	deps, err := bootstrap.NewDispatcherDependencies(ctx, cfg, logger, runOrchestrator)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	d := dispatcher.New(deps.Queue, deps.Jobs, deps.Idempotency, deps.Launcher, logger, dispatcher.Config{
		MaxConcurrentLaunches: int64(cfg.MaxConcurrentTasks),
	}).WithMetrics(reg)

	logger.Info("dispatcher polling started")
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dispatcher run: %w", err)
	}

	logger.Info("dispatcher stopped")
	return nil
}

// serveMetrics runs the /metrics scrape endpoint until ctx is cancelled.
// A failure here is logged, not fatal: losing the dispatcher's metrics
// endpoint shouldn't stop it from dispatching jobs.
func serveMetrics(ctx context.Context, port int, reg *metrics.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", slog.String("error", err.Error()))
	}
}

// inProcessOrchestratorRun builds a tasklauncher.RunFunc that runs one
// orchestrator pass using the same process's dependencies. It is only
// invoked by the dispatcher's LocalLauncher when no ECS cluster is
// configured.
func inProcessOrchestratorRun(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tasklauncher.RunFunc, error) {
	orchDeps, err := bootstrap.NewOrchestratorDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, input tasklauncher.LaunchInput) error {
		return orchDeps.Orch.Run(ctx, orchestrator.Input{
			JobID:         input.JobID,
			ObjectKey:     input.ObjectKey,
			ObjectVersion: input.ObjectVersion,
		})
	}, nil
}
