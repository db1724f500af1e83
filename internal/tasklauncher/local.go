package tasklauncher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifestream/core/internal/job/id"
)

// Compile-time check that LocalLauncher implements Launcher.
var _ Launcher = (*LocalLauncher)(nil)

// RunFunc runs one orchestrator pass for a job in-process. It is supplied
// by the caller (cmd/dispatcher in dev mode, or a test) rather than imported
// directly, so this package never depends on internal/orchestrator.
type RunFunc func(ctx context.Context, input LaunchInput) error

// LocalLauncher implements Launcher by running the orchestrator in a
// detached goroutine within the same process, for local development and
// integration tests where no ECS cluster is available.
type LocalLauncher struct {
	run    RunFunc
	logger *slog.Logger
}

// NewLocalLauncher creates a new LocalLauncher.
func NewLocalLauncher(run RunFunc, logger *slog.Logger) *LocalLauncher {
	return &LocalLauncher{run: run, logger: logger}
}

// Launch starts the orchestrator run in a background goroutine with a
// detached context, so the run survives past the dispatcher's own request
// or poll cycle ending.
func (l *LocalLauncher) Launch(ctx context.Context, input LaunchInput) (string, error) {
	handle := fmt.Sprintf("local-%s", id.Generate())

	go func(ctx context.Context, input LaunchInput, handle string) {
		if err := l.run(ctx, input); err != nil {
			l.logger.Error("local orchestrator run failed",
				slog.String("job_id", input.JobID),
				slog.String("handle", handle),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(ctx), input, handle)

	return handle, nil
}
