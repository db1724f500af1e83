// Package job provides the Job aggregate that tracks a single uploaded
// video's lifecycle from upload confirmation through indexed completion,
// plus the JobTable port for persisting it with compare-and-swap semantics.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/lifestream/core/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job has been created and is waiting for the dispatcher.
	StatusQueued Status = "queued"
	// StatusDispatched indicates the dispatcher has claimed the job and launched a task.
	StatusDispatched Status = "dispatched"
	// StatusProcessing indicates the orchestrator task is running the pipeline.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job failed at some stage.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
// processing -> processing (stage advance) is not a state change and is
// handled separately by UpdateStage, not TransitionTo.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusDispatched, StatusFailed},
	StatusDispatched: {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is the unit of work for one uploaded video.
type Job struct {
	mu sync.RWMutex

	// ID is the opaque, client-visible job identifier.
	ID string
	// ObjectKey is the blob-store location of the uploaded video.
	ObjectKey string
	// ObjectVersion is the content-hash/version of the uploaded blob.
	ObjectVersion string
	// ClientDurationHint is the uploader-reported duration in seconds, used
	// only for divergence logging; zero means not provided.
	ClientDurationHint float64
	// Status is the current lifecycle state.
	Status Status
	// Stage is the current pipeline stage name, set only while processing.
	Stage string
	// Progress is a monotonic fraction in [0, 1] derived from completed stages.
	Progress float64
	// Timings maps stage name to elapsed seconds.
	Timings map[string]float64
	// TaskHandle is the opaque identifier of the running container task.
	TaskHandle string
	// ResultKey is the blob-store location of the final summary, set at completion.
	ResultKey string
	// FailureReportKey is the blob-store location of the failure report, set at failure.
	FailureReportKey string
	// Error is a short human-readable summary of a terminal failure.
	Error string
	// CreatedAt is when the job row was created.
	CreatedAt time.Time
	// UpdatedAt is when the job row was last written.
	UpdatedAt time.Time
}

// New creates a new Job in the queued state for the given upload.
func New(objectKey, objectVersion string, clientDurationHint float64) *Job {
	now := time.Now()
	return &Job{
		ID:                 id.Generate(),
		ObjectKey:          objectKey,
		ObjectVersion:      objectVersion,
		ClientDurationHint: clientDurationHint,
		Status:             StatusQueued,
		Timings:            make(map[string]float64),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewWithID creates a new Job with an externally supplied ID.
// Useful for testing or when the ID is generated by the caller.
func NewWithID(jobID, objectKey, objectVersion string) *Job {
	now := time.Now()
	return &Job{
		ID:            jobID,
		ObjectKey:     objectKey,
		ObjectVersion: objectVersion,
		Status:        StatusQueued,
		Timings:       make(map[string]float64),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	if status == StatusCompleted {
		j.Progress = 1.0
	}

	return nil
}

// UpdateStage records the current pipeline stage and progress fraction.
// It does not change Status; callers must already be in StatusProcessing.
func (j *Job) UpdateStage(stage string, progress float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	j.Stage = stage
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// RecordTiming stores the elapsed seconds for a completed stage.
func (j *Job) RecordTiming(stage string, elapsed time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Timings == nil {
		j.Timings = make(map[string]float64)
	}
	j.Timings[stage] = elapsed.Seconds()
	j.UpdatedAt = time.Now()
}

// Complete transitions the job to completed with the given result key.
func (j *Job) Complete(resultKey string) error {
	j.mu.Lock()
	j.ResultKey = resultKey
	j.mu.Unlock()
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to failed, recording the failure report location
// and a short error summary.
func (j *Job) Fail(errMsg, failureReportKey string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.FailureReportKey = failureReportKey
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetTaskHandle records the task handle returned by the task launcher.
func (j *Job) SetTaskHandle(handle string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.TaskHandle = handle
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	timings := make(map[string]float64, len(j.Timings))
	for k, v := range j.Timings {
		timings[k] = v
	}

	return &Job{
		ID:                 j.ID,
		ObjectKey:          j.ObjectKey,
		ObjectVersion:      j.ObjectVersion,
		ClientDurationHint: j.ClientDurationHint,
		Status:             j.Status,
		Stage:              j.Stage,
		Progress:           j.Progress,
		Timings:            timings,
		TaskHandle:         j.TaskHandle,
		ResultKey:          j.ResultKey,
		FailureReportKey:   j.FailureReportKey,
		Error:              j.Error,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
	}
}
