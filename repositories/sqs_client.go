package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"youtube-publisher-worker/domain"
)

type SQSClient interface {
	ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, queueURL string, entries []types.DeleteMessageBatchRequestEntry) error
	SendMessage(ctx context.Context, queueURL string, msg interface{}) error
}

type AWSSQSClient struct {
	Client *sqs.Client
}

func NewSQSClient(client *sqs.Client) *AWSSQSClient {
	return &AWSSQSClient{Client: client}
}

func (s *AWSSQSClient) ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32) (*sqs.ReceiveMessageOutput, error) {
	out, err := s.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: maxMessages,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}
	return out, nil
}

// DeleteMessageBatch logs entries SQS reports as failed; only a failed call is
// returned as an error.
func (s *AWSSQSClient) DeleteMessageBatch(ctx context.Context, queueURL string, entries []types.DeleteMessageBatchRequestEntry) error {
	if len(entries) == 0 {
		return nil
	}
	out, err := s.Client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message batch: %w", err)
	}
	for _, f := range out.Failed {
		log.Warn().
			Str("id", aws.ToString(f.Id)).
			Str("code", aws.ToString(f.Code)).
			Str("message", aws.ToString(f.Message)).
			Msg("failed to delete message")
	}
	return nil
}

func (s *AWSSQSClient) SendMessage(ctx context.Context, queueURL string, msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", queueURL, err)
	}
	return nil
}

// SQSActivityResolver hands unresolved visits to the generic publisher
// activity worker behind the activity queue.
type SQSActivityResolver struct {
	client   SQSClient
	queueURL string
}

func NewSQSActivityResolver(client SQSClient, queueURL string) *SQSActivityResolver {
	return &SQSActivityResolver{client: client, queueURL: queueURL}
}

func (r *SQSActivityResolver) GetPublisherActivityFromURL(ctx context.Context, windowID uint64, visit domain.VisitData, publisherBlob string) error {
	msg := domain.ActivityMessage{
		Type:          domain.MsgTypePublisherActivity,
		WindowID:      windowID,
		Visit:         visit,
		PublisherBlob: publisherBlob,
	}
	return r.client.SendMessage(ctx, r.queueURL, msg)
}
