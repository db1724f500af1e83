package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job: not found")

// ErrConflict is returned by CompareAndSwapState when the job's current
// state no longer matches the expected state — another writer won the race.
var ErrConflict = errors.New("job: state changed concurrently")

// Table is the JobTable port. The dispatcher and orchestrator do not
// name a specific provider; they depend only on this interface.
type Table interface {
	// Save persists a job, creating it if it does not already exist.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// FindByObjectKey looks up the job created for a given (object_key,
	// object_version) pair, used by the dispatcher's find-or-create step.
	// Returns ErrJobNotFound if no such job exists.
	FindByObjectKey(ctx context.Context, objectKey, objectVersion string) (*Job, error)

	// List returns all jobs.
	List(ctx context.Context) ([]*Job, error)

	// CompareAndSwapState conditionally writes a job only if its persisted
	// state still equals expected. Returns ErrConflict if another writer
	// already moved the row past expected. The dispatcher's queued to
	// dispatched claim goes through this method. Save writes
	// unconditionally, and the orchestrator records its processing,
	// completed and failed transitions with Save, not with this method.
	CompareAndSwapState(ctx context.Context, job *Job, expected Status) error

	// Delete removes a job from storage.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
