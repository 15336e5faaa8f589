// internal/workers/grants/poll-queue/handler.go
package pollqueue

import (
	"context"

	"github.com/step-security-bot/usdr-gost/internal/common/aws"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	processbatch "github.com/step-security-bot/usdr-gost/internal/workers/grants/process-batch"
)

const (
	TaskType = "poll-queue"
)

type BatchReceiver interface {
	ReceiveBatch(ctx context.Context) ([]aws.Message, error)
}

type BatchProcessor interface {
	Process(ctx context.Context, messages []aws.Message) (processbatch.Summary, error)
}

// Loop drives one outstanding receive at a time until its context is
// cancelled or a transport error escalates.
type Loop struct {
	receiver  BatchReceiver
	processor BatchProcessor
	logger    logger.Logger
}

func NewLoop(receiver BatchReceiver, processor BatchProcessor, log logger.Logger) *Loop {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Loop{
		receiver:  receiver,
		processor: processor,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Run polls until ctx is cancelled. Cancellation is observed between
// iterations and by an in-progress long poll; a batch that has been
// received always runs to completion. Receive and delete failures are
// returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.logger.Info("Shutting down", nil)

	for ctx.Err() == nil {
		l.logger.Info("Long-polling next SQS message batch from queue", nil)

		messages, err := l.receiver.ReceiveBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("Failed to receive SQS message batch", map[string]interface{}{"error": err})
			return err
		}
		if len(messages) == 0 {
			continue
		}

		if _, err := l.processor.Process(context.WithoutCancel(ctx), messages); err != nil {
			l.logger.Error("Batch processing escalated a transport failure", map[string]interface{}{"error": err})
			return err
		}
	}
	return nil
}
