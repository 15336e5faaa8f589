// internal/common/aws/sqs.go
package aws

import (
	"context"

	appconfig "github.com/step-security-bot/usdr-gost/internal/common/config"
	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	// MaxMessagesPerReceive is the SQS ceiling for a single ReceiveMessage call.
	MaxMessagesPerReceive int32 = 10
	// LongPollSeconds is the SQS ceiling for long polling.
	LongPollSeconds int32 = 20
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received queue message.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
}

type SQSClient struct {
	client          SQSAPI
	queueURL        string
	maxMessages     int32
	waitTimeSeconds int32
	logger          logger.Logger
}

// NewSQSClient builds a client for the configured queue. A non-empty
// Endpoint overrides the service endpoint (LocalStack).
func NewSQSClient(ctx context.Context, cfg appconfig.QueueConfig, log logger.Logger) (*SQSClient, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewTransportError("load aws config", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
	})
	return NewSQSClientWithAPI(client, cfg, log), nil
}

// NewSQSClientWithAPI wraps an existing SQS API implementation.
func NewSQSClientWithAPI(api SQSAPI, cfg appconfig.QueueConfig, log logger.Logger) *SQSClient {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 || maxMessages > MaxMessagesPerReceive {
		maxMessages = MaxMessagesPerReceive
	}
	wait := cfg.WaitTimeSeconds
	if wait <= 0 || wait > LongPollSeconds {
		wait = LongPollSeconds
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SQSClient{
		client:          api,
		queueURL:        cfg.URL,
		maxMessages:     maxMessages,
		waitTimeSeconds: wait,
		logger:          log,
	}
}

// QueueURL returns the URL of the consumed queue.
func (s *SQSClient) QueueURL() string {
	return s.queueURL
}

// ReceiveBatch long-polls the queue for up to maxMessages messages.
// An empty slice is a normal outcome.
func (s *SQSClient) ReceiveBatch(ctx context.Context) ([]Message, error) {
	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            awssdk.String(s.queueURL),
		MaxNumberOfMessages: s.maxMessages,
		WaitTimeSeconds:     s.waitTimeSeconds,
	})
	if err != nil {
		return nil, apperrors.NewTransportError("receive", err)
	}

	if out == nil || len(out.Messages) == 0 {
		s.logger.Info("Empty message batch received from SQS", nil)
		return nil, nil
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            awssdk.ToString(m.MessageId),
			ReceiptHandle: awssdk.ToString(m.ReceiptHandle),
			Body:          awssdk.ToString(m.Body),
		})
	}

	s.logger.Debug("Received message batch", map[string]interface{}{
		"count": len(messages),
	})
	return messages, nil
}

// DeleteMessage acknowledges a message so it is not redelivered.
func (s *SQSClient) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      awssdk.String(s.queueURL),
		ReceiptHandle: awssdk.String(receiptHandle),
	})
	if err != nil {
		return apperrors.NewTransportError("delete", err)
	}
	return nil
}
