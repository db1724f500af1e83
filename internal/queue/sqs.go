package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Compile-time check that SQSQueue implements Queue.
var _ Queue = (*SQSQueue)(nil)

// sqsBody is the JSON wire format for a queue message
// ({job_id, object_key, object_version, client_duration_hint?}).
type sqsBody struct {
	JobID              string  `json:"job_id"`
	ObjectKey          string  `json:"object_key"`
	ObjectVersion      string  `json:"object_version"`
	ClientDurationHint float64 `json:"client_duration_hint,omitempty"`
}

// SQSQueue implements Queue against an Amazon SQS queue.
type SQSQueue struct {
	client          *sqs.Client
	queueURL        string
	visibilitySec   int32
	waitTimeSeconds int32
}

// NewSQSQueue creates a new SQSQueue. visibilitySeconds must exceed the
// dispatcher's worst-case launch latency (default 120, per the
// queue_visibility_seconds config key).
func NewSQSQueue(client *sqs.Client, queueURL string, visibilitySeconds int32) *SQSQueue {
	return &SQSQueue{
		client:          client,
		queueURL:        queueURL,
		visibilitySec:   visibilitySeconds,
		waitTimeSeconds: 20, // long-poll to avoid tight-looping on empty receives
	}
}

// Send enqueues a new message.
func (q *SQSQueue) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sqsBody{
		JobID:              msg.JobID,
		ObjectKey:          msg.ObjectKey,
		ObjectVersion:      msg.ObjectVersion,
		ClientDurationHint: msg.ClientDurationHint,
	})
	if err != nil {
		return fmt.Errorf("queue: marshal message: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("queue: send message: %w", err)
	}
	return nil
}

// Receive pulls up to maxMessages deliveries with a long-poll wait.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages int) ([]Message, error) {
	if maxMessages > 10 {
		maxMessages = 10 // SQS hard limit per ReceiveMessage call
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		VisibilityTimeout:   q.visibilitySec,
		WaitTimeSeconds:     q.waitTimeSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: receive message: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		var body sqsBody
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &body); err != nil {
			return nil, fmt.Errorf("queue: unmarshal message body: %w", err)
		}
		messages = append(messages, Message{
			ReceiptHandle:      aws.ToString(m.ReceiptHandle),
			JobID:              body.JobID,
			ObjectKey:          body.ObjectKey,
			ObjectVersion:      body.ObjectVersion,
			ClientDurationHint: body.ClientDurationHint,
		})
	}
	return messages, nil
}

// Delete acknowledges a delivery.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("queue: delete message: %w", err)
	}
	return nil
}
