// Package errors provides the standardized error taxonomy for the grant ingest pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Payload was not well-formed or did not match the vendor shape.
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
	// A date field matched none of the configured input formats.
	ErrCodeDateFormatError ErrorCode = "DATE_FORMAT_ERROR"
	// The grant store rejected or failed the write.
	ErrCodePersistenceError ErrorCode = "PERSISTENCE_ERROR"
	// The queue backend failed a receive or delete.
	ErrCodeTransportError ErrorCode = "TRANSPORT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Err       error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying driver or SDK error.
func (e *StandardError) Unwrap() error {
	return e.Err
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, ErrPersistence).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrParse       = &StandardError{Code: ErrCodeParseError}
	ErrDateFormat  = &StandardError{Code: ErrCodeDateFormatError}
	ErrPersistence = &StandardError{Code: ErrCodePersistenceError}
	ErrTransport   = &StandardError{Code: ErrCodeTransportError}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewParseError creates a non-retryable payload error. err may be nil.
func NewParseError(details string, err error) *StandardError {
	if err != nil {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Message payload could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewDateFormatError names the offending value and every format that was tried.
func NewDateFormatError(value string, formats []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDateFormatError,
		Message:   "Date could not be parsed",
		Details:   fmt.Sprintf("value %q could not be parsed from formats %s", value, strings.Join(formats, ", ")),
		Retryable: false,
		Metadata: map[string]interface{}{
			"value":   value,
			"formats": append([]string(nil), formats...),
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError creates a retryable store error for the given grant.
func NewPersistenceError(grantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceError,
		Message:   "Grant could not be saved",
		Details:   fmt.Sprintf("grantId: %s, error: %v", grantID, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"grantId": grantID},
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// NewTransportError creates a queue backend error for the named operation.
func NewTransportError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportError,
		Message:   "Queue operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		Err:       err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsParseFailure reports whether err is a contained normalization failure.
func IsParseFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeParseError, ErrCodeDateFormatError:
		return true
	}
	return false
}

// IsRetryableErrorCode reports whether redriving a message can succeed.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodePersistenceError, ErrCodeTransportError:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeParseError, ErrCodeDateFormatError:
		return "VALIDATION"
	case ErrCodePersistenceError:
		return "DATABASE"
	case ErrCodeTransportError:
		return "QUEUE"
	default:
		return "OTHER"
	}
}
