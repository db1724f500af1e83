// Package blobstore provides the BlobStore port, a narrow interface
// over cloud object storage, plus local-disk and S3 implementations.
// The orchestrator and API gateway depend only on this interface; they
// must not name a specific provider.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Store defines the interface for the blob store holding raw uploads and
// processing artifacts (see the logical key layout in the external
// interfaces contract: uploads/{object_key}, results/{job_id}/...).
type Store interface {
	// PresignPut returns a time-limited signed URL the client can PUT
	// directly to, for the initial upload handshake.
	PresignPut(ctx context.Context, key string, expires time.Duration) (url string, err error)

	// Put uploads data to the given key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves an object by key. The caller must close the returned
	// ReadCloser. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
