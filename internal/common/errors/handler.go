// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"time"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler logs pipeline errors with their standardized metadata.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleMessageError logs a per-message failure at error level with its code,
// category and retry hint.
func (h *ErrorHandler) HandleMessageError(messageID, stage string, err error) *StandardError {
	stdErr := h.normalizeError(err)

	fields := map[string]interface{}{
		"messageId":     messageID,
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	h.logger.Error("Message processing failed", fields)
	return stdErr
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}
