// Package idempotency provides the IdempotencyTable port: a persisted
// mapping from (object_key, object_version) to job_id, created by a
// conditional write that fails if the key already exists. This is what
// guarantees a given upload maps to at most one job over the table's
// lifetime.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned by Create when the (object_key,
// object_version) pair already has a record.
var ErrAlreadyExists = errors.New("idempotency: record already exists")

// ErrNotFound is returned when no record exists for the given key.
var ErrNotFound = errors.New("idempotency: record not found")

// Record maps one confirmed upload to the job created for it.
type Record struct {
	ObjectKey     string
	ObjectVersion string
	JobID         string
	CreatedAt     time.Time
}

// Table is the IdempotencyTable port. It is append-only: once a key maps
// to a job_id, it never changes.
type Table interface {
	// Create writes a new record. Returns ErrAlreadyExists if the
	// (object_key, object_version) pair already has a mapping; callers
	// should then Get the existing record and treat the request as an
	// idempotent retry.
	Create(ctx context.Context, objectKey, objectVersion, jobID string) error

	// Get returns the record for a given key, or ErrNotFound.
	Get(ctx context.Context, objectKey, objectVersion string) (Record, error)
}
