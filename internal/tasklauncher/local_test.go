package tasklauncher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalLauncher_Launch_RunsAndReturnsHandle(t *testing.T) {
	var mu sync.Mutex
	var gotInput LaunchInput
	done := make(chan struct{})

	run := func(_ context.Context, input LaunchInput) error {
		mu.Lock()
		gotInput = input
		mu.Unlock()
		close(done)
		return nil
	}

	l := NewLocalLauncher(run, newTestLogger())
	handle, err := l.Launch(context.Background(), LaunchInput{JobID: "job-1", ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if handle == "" {
		t.Error("expected a non-empty handle")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background run")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotInput.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", gotInput.JobID)
	}
}

func TestLocalLauncher_Launch_SurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)

	run := func(ctx context.Context, _ LaunchInput) error {
		close(started)
		<-time.After(50 * time.Millisecond)
		finished <- ctx.Err()
		return nil
	}

	l := NewLocalLauncher(run, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := l.Launch(ctx, LaunchInput{JobID: "job-1"}); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	<-started
	cancel() // caller's context ends; the detached run must not be affected

	select {
	case err := <-finished:
		if err != nil {
			t.Errorf("expected detached context to survive cancellation, got ctx.Err() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background run to finish")
	}
}

func TestLocalLauncher_Launch_LogsRunError(t *testing.T) {
	done := make(chan struct{})
	run := func(_ context.Context, _ LaunchInput) error {
		defer close(done)
		return errors.New("boom")
	}

	l := NewLocalLauncher(run, newTestLogger())
	if _, err := l.Launch(context.Background(), LaunchInput{JobID: "job-1"}); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background run")
	}
}
