package job

import (
	"context"
	"testing"
)

func TestMemoryTable_Save(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := New("uploads/a.mp4", "v1", 0)

	if err := table.Save(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := table.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != j.ID {
		t.Errorf("expected ID %s, got %s", j.ID, saved.ID)
	}
}

func TestMemoryTable_FindByObjectKey(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := New("uploads/a.mp4", "v1", 0)
	_ = table.Save(ctx, j)

	found, err := table.FindByObjectKey(ctx, "uploads/a.mp4", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != j.ID {
		t.Errorf("expected ID %s, got %s", j.ID, found.ID)
	}

	if _, err := table.FindByObjectKey(ctx, "uploads/other.mp4", "v1"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryTable_FindByID_NotFound(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()

	if _, err := table.FindByID(ctx, "nonexistent"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryTable_FindByID_ReturnsClone(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := New("uploads/a.mp4", "v1", 0)
	_ = table.Save(ctx, j)

	found, _ := table.FindByID(ctx, j.ID)
	found.Progress = 0.99

	original, _ := table.FindByID(ctx, j.ID)
	if original.Progress != 0 {
		t.Error("modifying returned job should not affect the table")
	}
}

func TestMemoryTable_List(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()

	jobs, err := table.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected 0 jobs, got %d", len(jobs))
	}

	_ = table.Save(ctx, New("uploads/a.mp4", "v1", 0))
	_ = table.Save(ctx, New("uploads/b.mp4", "v1", 0))

	jobs, err = table.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestMemoryTable_CompareAndSwapState(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := New("uploads/a.mp4", "v1", 0)
	_ = table.Save(ctx, j)

	if err := j.TransitionTo(StatusDispatched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := table.CompareAndSwapState(ctx, j, StatusQueued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second writer expecting the stale state loses the race.
	stale := j.Clone()
	_ = stale.TransitionTo(StatusProcessing) // from dispatched, legal on the clone
	if err := table.CompareAndSwapState(ctx, stale, StatusQueued); err != ErrConflict {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryTable_CompareAndSwapState_NotFound(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := NewWithID("missing", "uploads/a.mp4", "v1")

	if err := table.CompareAndSwapState(ctx, j, StatusQueued); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryTable_Delete(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()
	j := New("uploads/a.mp4", "v1", 0)
	_ = table.Save(ctx, j)

	if err := table.Delete(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := table.FindByID(ctx, j.ID); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryTable_ConcurrentAccess(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			_ = table.Save(ctx, New("uploads/a.mp4", "v1", 0))
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_, _ = table.List(ctx)
		}
		done <- true
	}()

	<-done
	<-done
}
