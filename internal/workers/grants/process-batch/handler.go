// internal/workers/grants/process-batch/handler.go
package processbatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/step-security-bot/usdr-gost/internal/common/aws"
	"github.com/step-security-bot/usdr-gost/internal/common/dedup"
	apperrors "github.com/step-security-bot/usdr-gost/internal/common/errors"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/common/metrics"
	"github.com/step-security-bot/usdr-gost/internal/common/observability"
	"github.com/step-security-bot/usdr-gost/internal/models"

	"github.com/google/uuid"
)

const (
	TaskType = "process-batch"
)

type GrantNormalizer interface {
	Normalize(body string) (*models.Grant, error)
}

type GrantStore interface {
	Upsert(ctx context.Context, grant *models.Grant) error
}

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, receiptHandle string) error
}

type SearchMirror interface {
	Index(ctx context.Context, grant *models.Grant) error
}

// Dependencies are the collaborators of a Handler. Dedup, Mirror and
// Observability are optional.
type Dependencies struct {
	Normalizer    GrantNormalizer
	Store         GrantStore
	Queue         MessageDeleter
	Dedup         dedup.Store
	Mirror        SearchMirror
	Observability *observability.Observability
}

type counters struct {
	success      atomic.Int64
	parseErrors  atomic.Int64
	saveErrors   atomic.Int64
	duplicates   atomic.Int64
	mirrorErrors atomic.Int64
	deleteErrors atomic.Int64
}

// Handler runs every message of a batch through normalize, persist and
// acknowledge concurrently. Parse and persist failures are contained; a
// failed delete is returned to the caller.
type Handler struct {
	normalizer GrantNormalizer
	store      GrantStore
	queue      MessageDeleter
	dedup      dedup.Store
	mirror     SearchMirror
	obs        *observability.Observability
	logger     logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	h := &Handler{
		normalizer: deps.Normalizer,
		store:      deps.Store,
		queue:      deps.Queue,
		obs:        deps.Observability,
		logger:     log,
	}
	if config != nil && config.DedupEnabled {
		h.dedup = deps.Dedup
	}
	if config != nil && config.MirrorEnabled {
		h.mirror = deps.Mirror
	}
	return h
}

// Process handles all messages and returns once each has settled. The
// returned error is non-nil only when one or more deletes failed.
func (h *Handler) Process(ctx context.Context, messages []aws.Message) (Summary, error) {
	batchID := uuid.New().String()
	log := h.logger.WithFields(map[string]interface{}{"batchId": batchID})

	metrics.BatchSize.Observe(float64(len(messages)))
	metrics.BatchInFlight.Add(float64(len(messages)))

	var (
		c         counters
		wg        sync.WaitGroup
		mu        sync.Mutex
		escalated []error
	)

	for _, msg := range messages {
		wg.Add(1)
		go func(msg aws.Message) {
			defer wg.Done()
			defer metrics.BatchInFlight.Dec()

			if err := h.processMessage(ctx, log, msg, &c); err != nil {
				mu.Lock()
				escalated = append(escalated, err)
				mu.Unlock()
			}
		}(msg)
	}
	wg.Wait()

	summary := Summary{
		BatchID:      batchID,
		Messages:     len(messages),
		Success:      int(c.success.Load()),
		ParseErrors:  int(c.parseErrors.Load()),
		SaveErrors:   int(c.saveErrors.Load()),
		Duplicates:   int(c.duplicates.Load()),
		MirrorErrors: int(c.mirrorErrors.Load()),
		DeleteErrors: int(c.deleteErrors.Load()),
	}

	fields := map[string]interface{}{
		"withErrors": summary.HasErrors(),
		"totals":     summary.totals(),
	}
	switch {
	case len(escalated) > 0:
		metrics.BatchesProcessed.WithLabelValues(metrics.BatchResultFatal).Inc()
		log.Warn("Finished processing SQS messages", fields)
	case summary.HasErrors():
		metrics.BatchesProcessed.WithLabelValues(metrics.BatchResultErrors).Inc()
		log.Warn("Finished processing SQS messages", fields)
	default:
		metrics.BatchesProcessed.WithLabelValues(metrics.BatchResultClean).Inc()
		log.Info("Finished processing SQS messages", fields)
	}

	return summary, errors.Join(escalated...)
}

func (h *Handler) processMessage(ctx context.Context, batchLog logger.Logger, msg aws.Message, c *counters) error {
	log := batchLog.WithFields(map[string]interface{}{
		"messageId":     msg.ID,
		"receiptHandle": msg.ReceiptHandle,
	})
	log.Info("Processing message", map[string]interface{}{"body": msg.Body})

	if h.alreadyProcessed(ctx, log, msg.ID) {
		c.duplicates.Add(1)
		h.record(ctx, metrics.OutcomeDuplicate)
		log.Info("Message already persisted, acknowledging without upsert", nil)
		return h.acknowledge(ctx, log, msg, c)
	}

	start := time.Now()
	grant, err := h.normalizer.Normalize(msg.Body)
	h.stage(ctx, observability.StageNormalize, start, err == nil)
	if err != nil {
		c.parseErrors.Add(1)
		h.record(ctx, metrics.OutcomeParseError)
		apperrors.NewErrorHandler(log).HandleMessageError(msg.ID, "normalize", err)
		return nil
	}
	log = log.WithFields(map[string]interface{}{"grantId": grant.GrantID})

	start = time.Now()
	err = h.store.Upsert(ctx, grant)
	h.stage(ctx, observability.StageUpsert, start, err == nil)
	if err != nil {
		c.saveErrors.Add(1)
		h.record(ctx, metrics.OutcomeSaveError)
		apperrors.NewErrorHandler(log).HandleMessageError(msg.ID, "upsert", err)
		return nil
	}
	c.success.Add(1)
	h.record(ctx, metrics.OutcomeSuccess)

	if h.dedup != nil {
		if err := h.dedup.MarkProcessed(ctx, msg.ID, grant.GrantID); err != nil {
			log.Warn("Failed to record processed message", map[string]interface{}{"error": err})
		}
	}

	if h.mirror != nil {
		start = time.Now()
		err := h.mirror.Index(ctx, grant)
		h.stage(ctx, observability.StageMirror, start, err == nil)
		if err != nil {
			c.mirrorErrors.Add(1)
			metrics.MirrorErrors.Inc()
			log.Warn("Failed to mirror grant to search index", map[string]interface{}{"error": err})
		}
	}

	return h.acknowledge(ctx, log, msg, c)
}

func (h *Handler) acknowledge(ctx context.Context, log logger.Logger, msg aws.Message, c *counters) error {
	start := time.Now()
	err := h.queue.DeleteMessage(ctx, msg.ReceiptHandle)
	h.stage(ctx, observability.StageDelete, start, err == nil)
	if err != nil {
		c.deleteErrors.Add(1)
		h.record(ctx, metrics.OutcomeDeleteError)
		apperrors.NewErrorHandler(log).HandleMessageError(msg.ID, "delete", err)
		if !errors.Is(err, apperrors.ErrTransport) {
			err = apperrors.NewTransportError("delete", err)
		}
		return err
	}

	log.Info("Processing completed successfully", nil)
	return nil
}

// alreadyProcessed consults the dedup store. Store failures are logged and
// treated as not processed.
func (h *Handler) alreadyProcessed(ctx context.Context, log logger.Logger, messageID string) bool {
	if h.dedup == nil || messageID == "" {
		return false
	}
	processed, err := h.dedup.IsProcessed(ctx, messageID)
	if err != nil {
		log.Warn("Dedup lookup failed, processing message normally", map[string]interface{}{"error": err})
		return false
	}
	return processed
}

func (h *Handler) record(ctx context.Context, outcome string) {
	metrics.MessagesProcessed.WithLabelValues(outcome).Inc()
	h.obs.RecordMessageProcessed(ctx, outcome)
}

func (h *Handler) stage(ctx context.Context, stage string, start time.Time, ok bool) {
	h.obs.RecordStageDuration(ctx, stage, time.Since(start), ok)
}
