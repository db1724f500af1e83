package orchestrator

import (
	"time"

	"github.com/lifestream/core/internal/modelclient"
)

// SynchronizedContext is the join product of stage 5: a time window, the
// audio segments and keyframes overlapping it, and free-form metadata.
type SynchronizedContext struct {
	StartSeconds float64
	EndSeconds   float64
	Transcript   []modelclient.TranscriptSegment
	Keyframes    []modelclient.Keyframe
	ContextType  string // populated by stage 6, consulted by stage 7
	Metadata     map[string]string
}

// FailureReport is uploaded to FailureReportKey when a fatal stage fails.
type FailureReport struct {
	JobID       string    `json:"job_id"`
	Stage       string    `json:"stage"`
	ErrorClass  string    `json:"error_class"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Timings     map[string]float64 `json:"timings"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Input carries what a launched task needs to process one job.
type Input struct {
	JobID         string
	ObjectKey     string
	ObjectVersion string
}
