// Package queue provides the Queue port over the work queue that carries
// confirmed-upload messages from the API gateway to the dispatcher.
package queue

import "context"

// Message is one queue delivery: the confirmed-upload notification
// ({job_id, object_key, object_version, client_duration_hint?}).
type Message struct {
	// ReceiptHandle identifies this specific delivery for Delete, distinct
	// from any application-level message ID.
	ReceiptHandle string
	JobID         string
	ObjectKey     string
	ObjectVersion string
	// ClientDurationHint is optional; zero means not provided.
	ClientDurationHint float64
}

// Queue is the Queue port. The dispatcher depends only on this interface.
type Queue interface {
	// Send enqueues a new message.
	Send(ctx context.Context, msg Message) error

	// Receive pulls up to maxMessages deliveries, blocking (subject to
	// ctx) until at least one is available or the provider's long-poll
	// timeout elapses and it returns an empty slice.
	Receive(ctx context.Context, maxMessages int) ([]Message, error)

	// Delete acknowledges a delivery, removing it from the queue so it is
	// not redelivered after the visibility timeout.
	Delete(ctx context.Context, receiptHandle string) error
}
