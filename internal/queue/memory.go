package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/lifestream/core/internal/job/id"
)

// Compile-time check that MemoryQueue implements Queue.
var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is an in-memory, channel-backed implementation of Queue for
// development and tests. Delivered-but-undeleted messages are tracked so
// that a redelivery-after-crash scenario (scenario: "queue redelivery
// after a crashed dispatcher") can be exercised without a real broker.
type MemoryQueue struct {
	mu      sync.Mutex
	pending chan Message
	inFlight map[string]Message
}

// NewMemoryQueue creates a new in-memory queue with the given buffer size.
func NewMemoryQueue(buffer int) *MemoryQueue {
	return &MemoryQueue{
		pending:  make(chan Message, buffer),
		inFlight: make(map[string]Message),
	}
}

// Send enqueues a new message, assigning it a fresh receipt handle.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	msg.ReceiptHandle = id.Generate()
	select {
	case q.pending <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue: send cancelled: %w", ctx.Err())
	}
}

// Receive pulls up to maxMessages deliveries. It never blocks past the
// first available message: if none are queued it returns immediately
// with an empty slice, mirroring a short-poll receive.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int) ([]Message, error) {
	var out []Message
	for len(out) < maxMessages {
		select {
		case msg := <-q.pending:
			q.mu.Lock()
			q.inFlight[msg.ReceiptHandle] = msg
			q.mu.Unlock()
			out = append(out, msg)
		case <-ctx.Done():
			return out, nil
		default:
			return out, nil
		}
	}
	return out, nil
}

// Delete acknowledges a delivery, removing it from the in-flight set.
func (q *MemoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, receiptHandle)
	return nil
}

// Redeliver re-queues every currently in-flight message, simulating a
// visibility-timeout expiry or a crashed consumer that never deleted its
// deliveries. Test-only helper.
func (q *MemoryQueue) Redeliver(ctx context.Context) error {
	q.mu.Lock()
	inFlight := make([]Message, 0, len(q.inFlight))
	for _, msg := range q.inFlight {
		inFlight = append(inFlight, msg)
	}
	q.inFlight = make(map[string]Message)
	q.mu.Unlock()

	for _, msg := range inFlight {
		msg.ReceiptHandle = ""
		if err := q.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
