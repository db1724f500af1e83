package idempotency

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryTable implements Table.
var _ Table = (*MemoryTable)(nil)

// MemoryTable is an in-memory implementation of Table, for development and
// tests.
type MemoryTable struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryTable creates a new in-memory idempotency table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{records: make(map[string]Record)}
}

func recordKey(objectKey, objectVersion string) string {
	return objectKey + "|" + objectVersion
}

// Create writes a new record, failing if one already exists for this key.
// The whole check-then-write happens under the table's mutex so it behaves
// like the conditional-create the production table provides.
func (t *MemoryTable) Create(_ context.Context, objectKey, objectVersion, jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := recordKey(objectKey, objectVersion)
	if _, exists := t.records[key]; exists {
		return ErrAlreadyExists
	}

	t.records[key] = Record{
		ObjectKey:     objectKey,
		ObjectVersion: objectVersion,
		JobID:         jobID,
		CreatedAt:     time.Now(),
	}
	return nil
}

// Get returns the record for a given key, or ErrNotFound.
func (t *MemoryTable) Get(_ context.Context, objectKey, objectVersion string) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[recordKey(objectKey, objectVersion)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}
