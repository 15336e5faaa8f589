// internal/workers/grants/poll-queue/handler_test.go
package pollqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/step-security-bot/usdr-gost/internal/common/aws"
	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	processbatch "github.com/step-security-bot/usdr-gost/internal/workers/grants/process-batch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type receiveResult struct {
	messages []aws.Message
	err      error
}

// scriptedReceiver returns the scripted results in order and then cancels
// the loop, like a SIGTERM arriving during the next long poll.
type scriptedReceiver struct {
	mu      sync.Mutex
	results []receiveResult
	calls   int
	cancel  context.CancelFunc
}

func (r *scriptedReceiver) ReceiveBatch(ctx context.Context) ([]aws.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.results) == 0 {
		r.cancel()
		<-ctx.Done()
		return nil, apperrors.NewTransportError("receive", ctx.Err())
	}
	next := r.results[0]
	r.results = r.results[1:]
	return next.messages, next.err
}

type recordingProcessor struct {
	mu      sync.Mutex
	batches [][]aws.Message
	err     error
	during  func(ctx context.Context)
}

func (p *recordingProcessor) Process(ctx context.Context, messages []aws.Message) (processbatch.Summary, error) {
	if p.during != nil {
		p.during(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, messages)
	return processbatch.Summary{Messages: len(messages), Success: len(messages)}, p.err
}

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewZapAdapter(zap.New(core)), logs
}

func batch(ids ...string) []aws.Message {
	out := make([]aws.Message, len(ids))
	for i, id := range ids {
		out[i] = aws.Message{ID: id, ReceiptHandle: "rh-" + id, Body: "{}"}
	}
	return out
}

func TestLoop_Run_ProcessesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiver := &scriptedReceiver{
		results: []receiveResult{
			{messages: batch("a", "b")},
			{messages: nil},
			{messages: batch("c")},
		},
		cancel: cancel,
	}
	processor := &recordingProcessor{}
	log, logs := newObservedLogger()

	err := NewLoop(receiver, processor, log).Run(ctx)
	require.NoError(t, err)

	require.Len(t, processor.batches, 2, "empty batches are not processed")
	assert.Len(t, processor.batches[0], 2)
	assert.Len(t, processor.batches[1], 1)
	assert.Equal(t, 4, receiver.calls)
	assert.Equal(t, 4, logs.FilterMessage("Long-polling next SQS message batch from queue").Len())
	assert.Equal(t, 1, logs.FilterMessage("Shutting down").Len())
}

func TestLoop_Run_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	receiver := &scriptedReceiver{cancel: cancel}
	log, logs := newObservedLogger()

	require.NoError(t, NewLoop(receiver, &recordingProcessor{}, log).Run(ctx))
	assert.Equal(t, 0, receiver.calls)
	assert.Equal(t, 1, logs.FilterMessage("Shutting down").Len())
}

func TestLoop_Run_ReceiveErrorPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiveErr := apperrors.NewTransportError("receive", errors.New("InvalidClientTokenId"))
	receiver := &scriptedReceiver{results: []receiveResult{{err: receiveErr}}, cancel: cancel}
	processor := &recordingProcessor{}

	err := NewLoop(receiver, processor, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Empty(t, processor.batches)
}

func TestLoop_Run_DeleteEscalationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiver := &scriptedReceiver{
		results: []receiveResult{{messages: batch("a")}, {messages: batch("b")}},
		cancel:  cancel,
	}
	processor := &recordingProcessor{err: apperrors.NewTransportError("delete", errors.New("throttled"))}

	err := NewLoop(receiver, processor, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Len(t, processor.batches, 1, "no further batches after escalation")
	assert.Equal(t, 1, receiver.calls)
}

func TestLoop_Run_InFlightBatchFinishesAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiver := &scriptedReceiver{results: []receiveResult{{messages: batch("a")}}, cancel: cancel}

	var batchCtxErr error
	processor := &recordingProcessor{during: func(batchCtx context.Context) {
		// shutdown arrives mid-batch
		cancel()
		select {
		case <-batchCtx.Done():
		case <-time.After(10 * time.Millisecond):
		}
		batchCtxErr = batchCtx.Err()
	}}

	err := NewLoop(receiver, processor, nil).Run(ctx)
	require.NoError(t, err)
	assert.NoError(t, batchCtxErr, "the batch context is detached from shutdown")
	assert.Len(t, processor.batches, 1)
	assert.Equal(t, 1, receiver.calls, "no poll after shutdown")
}
