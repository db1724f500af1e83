// Package main provides the entry point for the LifeStream orchestrator
// task: a one-off process, launched by the dispatcher per job, that runs
// the full download-through-indexing pipeline for a single video.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lifestream/core/internal/bootstrap"
	"github.com/lifestream/core/internal/config"
	"github.com/lifestream/core/internal/orchestrator"
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

	input, err := inputFromEnv()
	if err != nil {
		return err
	}

	logger.Info("starting orchestrator run",
		slog.String("job_id", input.JobID),
		slog.String("object_key", input.ObjectKey),
	)

	ctx := context.Background()
	deps, err := bootstrap.NewOrchestratorDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	if err := deps.Orch.Run(ctx, input); err != nil {
		return fmt.Errorf("orchestrator run failed: %w", err)
	}

	logger.Info("orchestrator run completed", slog.String("job_id", input.JobID))
	return nil
}

// inputFromEnv reads the job identifiers the task launcher passes as
// container environment overrides (see tasklauncher.ECSLauncher.Launch).
func inputFromEnv() (orchestrator.Input, error) {
	jobID := os.Getenv("JOB_ID")
	objectKey := os.Getenv("OBJECT_KEY")
	objectVersion := os.Getenv("OBJECT_VERSION")

	if jobID == "" {
		return orchestrator.Input{}, errors.New("orchestrator: JOB_ID environment variable is required")
	}
	if objectKey == "" {
		return orchestrator.Input{}, errors.New("orchestrator: OBJECT_KEY environment variable is required")
	}

	return orchestrator.Input{JobID: jobID, ObjectKey: objectKey, ObjectVersion: objectVersion}, nil
}
