package queue

import (
	"context"
	"testing"
)

func TestMemoryQueue_SendReceive(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()

	msg := Message{JobID: "job-1", ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"}
	if err := q.Send(ctx, msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	received, err := q.Receive(ctx, 5)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("got %d messages, want 1", len(received))
	}
	if received[0].JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", received[0].JobID)
	}
	if received[0].ReceiptHandle == "" {
		t.Error("expected a non-empty receipt handle")
	}
}

func TestMemoryQueue_Receive_EmptyReturnsImmediately(t *testing.T) {
	q := NewMemoryQueue(10)

	received, err := q.Receive(context.Background(), 5)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(received) != 0 {
		t.Errorf("got %d messages, want 0", len(received))
	}
}

func TestMemoryQueue_Receive_RespectsMaxMessages(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := q.Send(ctx, Message{JobID: "job"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	received, err := q.Receive(ctx, 2)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("got %d messages, want 2", len(received))
	}
}

func TestMemoryQueue_Delete(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()

	_ = q.Send(ctx, Message{JobID: "job-1"})
	received, _ := q.Receive(ctx, 1)
	if len(received) != 1 {
		t.Fatalf("expected 1 received message")
	}

	if err := q.Delete(ctx, received[0].ReceiptHandle); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	q.mu.Lock()
	_, stillInFlight := q.inFlight[received[0].ReceiptHandle]
	q.mu.Unlock()
	if stillInFlight {
		t.Error("expected message to be removed from in-flight set after Delete")
	}
}

// TestMemoryQueue_Redeliver exercises the "queue redelivery after a crashed
// dispatcher" scenario: a message received but never deleted (simulating a
// dispatcher that crashed mid-launch) becomes available again.
func TestMemoryQueue_Redeliver(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()

	_ = q.Send(ctx, Message{JobID: "job-1", ObjectKey: "uploads/a.mp4", ObjectVersion: "v1"})
	received, err := q.Receive(ctx, 1)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 received message")
	}

	// Dispatcher "crashes" here without calling Delete.
	if err := q.Redeliver(ctx); err != nil {
		t.Fatalf("Redeliver() error = %v", err)
	}

	redelivered, err := q.Receive(ctx, 1)
	if err != nil {
		t.Fatalf("Receive() after redeliver error = %v", err)
	}
	if len(redelivered) != 1 {
		t.Fatalf("got %d redelivered messages, want 1", len(redelivered))
	}
	if redelivered[0].JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", redelivered[0].JobID)
	}
	if redelivered[0].ReceiptHandle == received[0].ReceiptHandle {
		t.Error("expected redelivery to assign a fresh receipt handle")
	}
}

func TestMemoryQueue_Redeliver_NoInFlightIsNoop(t *testing.T) {
	q := NewMemoryQueue(10)

	if err := q.Redeliver(context.Background()); err != nil {
		t.Fatalf("Redeliver() error = %v", err)
	}

	received, err := q.Receive(context.Background(), 1)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(received) != 0 {
		t.Errorf("got %d messages, want 0", len(received))
	}
}
