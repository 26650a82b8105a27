package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

//go:generate mockery --name SQSAPI --output mocks --outpkg mocks

// SQSAPI is the subset of the SQS client the scheduler uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSScheduler implements the Scheduler interface using AWS SQS.
type SQSScheduler struct {
	Client   SQSAPI
	QueueURL string
}

// NewSQSScheduler creates a new SQSScheduler.
func NewSQSScheduler(client SQSAPI, queueURL string) *SQSScheduler {
	return &SQSScheduler{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ Scheduler = (*SQSScheduler)(nil)

// EnqueueTransaction implements Scheduler.
func (s *SQSScheduler) EnqueueTransaction(ctx context.Context, transactionID string) error {
	return s.send(ctx, Message{Kind: KindTransaction, ID: transactionID})
}

// EnqueuePayout implements Scheduler.
func (s *SQSScheduler) EnqueuePayout(ctx context.Context, batchID string) error {
	return s.send(ctx, Message{Kind: KindPayout, ID: batchID})
}

func (s *SQSScheduler) send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message for SQS: %w", m.Kind, err)
	}

	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(m.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s %s to SQS: %w", m.Kind, m.ID, err)
	}

	return nil
}
