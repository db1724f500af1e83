// Package dispatcher implements the long-running consumer that moves
// queued jobs to dispatched and launches their processing tasks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lifestream/core/internal/idempotency"
	"github.com/lifestream/core/internal/job"
	"github.com/lifestream/core/internal/job/id"
	"github.com/lifestream/core/internal/metrics"
	"github.com/lifestream/core/internal/queue"
	"github.com/lifestream/core/internal/tasklauncher"
)

// Config configures a Dispatcher.
type Config struct {
	// MaxConcurrentLaunches bounds the number of in-flight task launches
	// across all jobs (default 10, per the concurrency model).
	MaxConcurrentLaunches int64
	// ReceiveBatchSize is how many messages to pull per poll. Batches
	// of one bound the blast radius of a bad launch; configurable for
	// throughput tuning.
	ReceiveBatchSize int
	// PollInterval is how long to sleep between polls that returned no messages.
	PollInterval time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentLaunches: 10,
		ReceiveBatchSize:      1,
		PollInterval:          2 * time.Second,
	}
}

// Dispatcher pulls confirmed-upload messages from the work queue and
// launches a processing task for each one, exactly once per job.
type Dispatcher struct {
	queue        queue.Queue
	jobs         job.Table
	idempotency  idempotency.Table
	launcher     tasklauncher.Launcher
	logger       *slog.Logger
	cfg          Config
	sem          *semaphore.Weighted
	metrics      *metrics.Registry
}

// WithMetrics attaches a metrics registry the dispatcher records launch
// outcomes against. Optional; a Dispatcher with no registry attached
// simply skips recording.
func (d *Dispatcher) WithMetrics(reg *metrics.Registry) *Dispatcher {
	d.metrics = reg
	return d
}

// New creates a new Dispatcher.
func New(q queue.Queue, jobs job.Table, idem idempotency.Table, launcher tasklauncher.Launcher, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.MaxConcurrentLaunches <= 0 {
		cfg.MaxConcurrentLaunches = 10
	}
	if cfg.ReceiveBatchSize <= 0 {
		cfg.ReceiveBatchSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Dispatcher{
		queue:       q,
		jobs:        jobs,
		idempotency: idem,
		launcher:    launcher,
		logger:      logger,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentLaunches),
	}
}

// Run polls the queue until ctx is cancelled, launching a task per
// message with bounded parallelism.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := d.queue.Receive(ctx, d.cfg.ReceiveBatchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			d.logger.Error("receive failed", slog.String("error", err.Error()))
			continue
		}

		if len(messages) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.PollInterval):
			}
			continue
		}

		for _, msg := range messages {
			if err := d.sem.Acquire(ctx, 1); err != nil {
				return ctx.Err()
			}
			go func(msg queue.Message) {
				defer d.sem.Release(1)
				d.handle(context.WithoutCancel(ctx), msg)
			}(msg)
		}
	}
}

// handle runs the dispatcher's 5-step algorithm for one message.
func (d *Dispatcher) handle(ctx context.Context, msg queue.Message) {
	log := d.logger.With(
		slog.String("object_key", msg.ObjectKey),
		slog.String("object_version", msg.ObjectVersion),
	)

	jobID, err := d.resolveJobID(ctx, msg)
	if err != nil {
		log.Error("failed to resolve job id", slog.String("error", err.Error()))
		return
	}
	log = log.With(slog.String("job_id", jobID))

	j, err := d.jobs.FindByID(ctx, jobID)
	if err != nil {
		log.Error("failed to read job row", slog.String("error", err.Error()))
		return
	}

	switch j.GetStatus() {
	case job.StatusCompleted, job.StatusFailed, job.StatusProcessing, job.StatusDispatched:
		// Already handled or in flight.
		d.deleteMessage(ctx, log, msg)
		return
	}

	if err := j.TransitionTo(job.StatusDispatched); err != nil {
		log.Error("invalid transition to dispatched", slog.String("error", err.Error()))
		return
	}
	if err := d.jobs.CompareAndSwapState(ctx, j, job.StatusQueued); err != nil {
		if errors.Is(err, job.ErrConflict) {
			log.Info("lost dispatch race to another dispatcher")
			d.deleteMessage(ctx, log, msg)
			return
		}
		log.Error("failed to transition queued -> dispatched", slog.String("error", err.Error()))
		return
	}

	handle, err := d.launcher.Launch(ctx, tasklauncher.LaunchInput{
		JobID:         jobID,
		ObjectKey:     msg.ObjectKey,
		ObjectVersion: msg.ObjectVersion,
	})
	if err != nil {
		// Leave the message in flight; the queue will redeliver after
		// the visibility timeout and another attempt will be made.
		log.Error("failed to launch task", slog.String("error", err.Error()))
		if d.metrics != nil {
			d.metrics.JobsDispatchedTotal.WithLabelValues("launch_failed").Inc()
			d.metrics.TaskLaunchFailures.WithLabelValues(launcherKind(d.launcher)).Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.JobsDispatchedTotal.WithLabelValues("launched").Inc()
	}

	dispatched, err := d.jobs.FindByID(ctx, jobID)
	if err == nil {
		dispatched.SetTaskHandle(handle)
		if err := d.jobs.Save(ctx, dispatched); err != nil {
			log.Warn("failed to record task handle", slog.String("error", err.Error()))
		}
	}

	d.deleteMessage(ctx, log, msg)
	log.Info("task launched", slog.String("task_handle", handle))
}

// resolveJobID maps a queue message to its job ID, handling both the
// normal case (idempotency record already created by confirm_upload) and
// a bare queue delivery with no prior idempotency record.
func (d *Dispatcher) resolveJobID(ctx context.Context, msg queue.Message) (string, error) {
	if msg.JobID != "" {
		return msg.JobID, nil
	}

	record, err := d.idempotency.Get(ctx, msg.ObjectKey, msg.ObjectVersion)
	if err == nil {
		return record.JobID, nil
	}
	if !errors.Is(err, idempotency.ErrNotFound) {
		return "", fmt.Errorf("dispatcher: lookup idempotency record: %w", err)
	}

	jobID := id.Generate()
	if err := d.idempotency.Create(ctx, msg.ObjectKey, msg.ObjectVersion, jobID); err != nil {
		if errors.Is(err, idempotency.ErrAlreadyExists) {
			record, getErr := d.idempotency.Get(ctx, msg.ObjectKey, msg.ObjectVersion)
			if getErr != nil {
				return "", fmt.Errorf("dispatcher: re-fetch idempotency record after race: %w", getErr)
			}
			return record.JobID, nil
		}
		return "", fmt.Errorf("dispatcher: create idempotency record: %w", err)
	}

	newJob := job.NewWithID(jobID, msg.ObjectKey, msg.ObjectVersion)
	newJob.ClientDurationHint = msg.ClientDurationHint
	if err := d.jobs.Save(ctx, newJob); err != nil {
		return "", fmt.Errorf("dispatcher: save job row for bare delivery: %w", err)
	}
	return jobID, nil
}

// launcherKind labels a metrics series by the launcher's concrete type
// without widening the Launcher interface just to expose a name.
func launcherKind(l tasklauncher.Launcher) string {
	switch l.(type) {
	case *tasklauncher.ECSLauncher:
		return "ecs"
	case *tasklauncher.LocalLauncher:
		return "local"
	default:
		return "unknown"
	}
}

func (d *Dispatcher) deleteMessage(ctx context.Context, log *slog.Logger, msg queue.Message) {
	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error("failed to delete queue message", slog.String("error", err.Error()))
	}
}
