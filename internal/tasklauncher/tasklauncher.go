// Package tasklauncher provides the TaskLauncher port over the compute
// backend that runs orchestrator processes for dispatched jobs.
package tasklauncher

import "context"

// LaunchInput carries what the orchestrator process needs to process one job.
type LaunchInput struct {
	JobID         string
	ObjectKey     string
	ObjectVersion string
}

// Launcher is the TaskLauncher port. The dispatcher depends only on this
// interface when moving a job from dispatched to a running orchestrator
// instance.
type Launcher interface {
	// Launch starts an orchestrator run for the given job and returns an
	// opaque handle (task ARN, process ID, ...) that can be recorded on the
	// job for observability. Launch does not wait for the run to finish.
	Launch(ctx context.Context, input LaunchInput) (handle string, err error)
}
