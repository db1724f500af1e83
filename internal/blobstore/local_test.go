package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("video bytes"))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rc, err := store.Get(ctx, "uploads/a.mp4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "video bytes" {
		t.Errorf("got %q, want %q", string(data), "video bytes")
	}
}

func TestLocalStore_Get_NotFound(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	if _, err := store.Get(context.Background(), "missing/key"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_Exists(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	exists, err := store.Exists(ctx, "uploads/a.mp4")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("expected key to not exist before Put")
	}

	_ = store.Put(ctx, "uploads/a.mp4", bytes.NewReader([]byte("data")))

	exists, err = store.Exists(ctx, "uploads/a.mp4")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("expected key to exist after Put")
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	_ = store.Put(ctx, "results/job-1/summary.json", bytes.NewReader([]byte("{}")))
	if err := store.Delete(ctx, "results/job-1/summary.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if exists, _ := store.Exists(ctx, "results/job-1/summary.json"); exists {
		t.Error("expected key to be gone after Delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "results/job-1/summary.json"); err != nil {
		t.Errorf("expected no error deleting a missing key, got %v", err)
	}
}

func TestLocalStore_PresignPut(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	url, err := store.PresignPut(context.Background(), "uploads/a.mp4", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut() error = %v", err)
	}
	if url == "" {
		t.Error("expected a non-empty URL")
	}
}
