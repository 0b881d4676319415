package inbound

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of *sqs.Client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue implements Queue on AWS (or LocalStack) SQS. On a FIFO queue
// (URL ending in ".fifo") each message carries its group key as
// MessageGroupId, so SQS hands one patient's messages out in order and never
// to two consumers at once.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

// NewSQSQueue wraps client for queueURL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("inbound: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("inbound: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL, fifo: IsFIFOQueue(queueURL)}
}

// IsFIFOQueue reports whether queueURL names an SQS FIFO queue.
func IsFIFOQueue(queueURL string) bool {
	return strings.HasSuffix(strings.TrimRight(queueURL, "/"), ".fifo")
}

// FIFO reports whether per-group ordering is enforced by SQS.
func (q *SQSQueue) FIFO() bool {
	return q.fifo
}

func (q *SQSQueue) Send(ctx context.Context, body, groupKey string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if q.fifo {
		if groupKey == "" {
			groupKey = "default"
		}
		// The body carries the event id, so a retried Send of the same event
		// dedups while distinct events never collide.
		sum := sha256.Sum256([]byte(body))
		input.MessageGroupId = aws.String(groupKey)
		input.MessageDeduplicationId = aws.String(hex.EncodeToString(sum[:]))
	}
	_, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("inbound: send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("inbound: receive SQS messages: %w", err)
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("inbound: delete SQS message: %w", err)
	}
	return nil
}
