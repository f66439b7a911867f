// Package errors provides error types for SummaryHub
package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// SummaryError represents a SummaryHub error with structured information
type SummaryError struct {
	// Core error information
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	UserMsg     string                 `json:"user_message,omitempty"`
	Severity    Severity               `json:"severity"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`

	// Context information
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Segment   int       `json:"segment,omitempty"`

	// Error hierarchy
	Cause   error  `json:"-"`                 // Original error (not serialized)
	Context string `json:"context,omitempty"` // Additional context

	// Retry information
	Retryable    bool           `json:"retryable"`
	RetryAfter   *time.Duration `json:"retry_after,omitempty"`
	AttemptCount int            `json:"attempt_count,omitempty"`
}

// Error implements the error interface
func (e *SummaryError) Error() string {
	if e.BatchID != "" && e.Segment > 0 {
		return fmt.Sprintf("%s: %s (batch: %s, segment: %d)", e.Code, e.Message, e.BatchID, e.Segment)
	}
	if e.BatchID != "" {
		return fmt.Sprintf("%s: %s (batch: %s)", e.Code, e.Message, e.BatchID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// String returns a string representation of the error
func (e *SummaryError) String() string {
	return e.Error()
}

// Unwrap returns the underlying cause error
func (e *SummaryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *SummaryError) Is(target error) bool {
	if targetErr, ok := target.(*SummaryError); ok {
		return e.Code == targetErr.Code
	}
	return false
}

// MarshalJSON implements json.Marshaler
func (e *SummaryError) MarshalJSON() ([]byte, error) {
	type Alias SummaryError
	return json.Marshal(&struct {
		*Alias
		CauseMessage string `json:"cause_message,omitempty"`
	}{
		Alias:        (*Alias)(e),
		CauseMessage: e.getCauseMessage(),
	})
}

// getCauseMessage returns the cause error message if available
func (e *SummaryError) getCauseMessage() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

// WithCause adds a cause error
func (e *SummaryError) WithCause(cause error) *SummaryError {
	e.Cause = cause
	return e
}

// WithContext adds context information
func (e *SummaryError) WithContext(context string) *SummaryError {
	e.Context = context
	return e
}

// WithDiagnostic adds a sanitized diagnostic value. Callers must not put
// PII or absolute paths here.
func (e *SummaryError) WithDiagnostic(key string, value interface{}) *SummaryError {
	if e.Diagnostics == nil {
		e.Diagnostics = make(map[string]interface{})
	}
	e.Diagnostics[key] = value
	return e
}

// WithBatch sets the batch reference
func (e *SummaryError) WithBatch(batchID string) *SummaryError {
	e.BatchID = batchID
	return e
}

// WithOwner sets the owner reference
func (e *SummaryError) WithOwner(owner string) *SummaryError {
	e.Owner = owner
	return e
}

// WithSegment sets the segment index (1-based in messages)
func (e *SummaryError) WithSegment(index int) *SummaryError {
	e.Segment = index
	return e
}

// WithRequestID sets the correlation ID
func (e *SummaryError) WithRequestID(requestID string) *SummaryError {
	e.RequestID = requestID
	return e
}

// WithUserMessage sets the user-facing message
func (e *SummaryError) WithUserMessage(msg string) *SummaryError {
	e.UserMsg = msg
	return e
}

// WithRetryAfter sets the retry delay
func (e *SummaryError) WithRetryAfter(delay time.Duration) *SummaryError {
	e.RetryAfter = &delay
	return e
}

// WithAttemptCount sets the attempt count
func (e *SummaryError) WithAttemptCount(count int) *SummaryError {
	e.AttemptCount = count
	return e
}

// IsRetryable returns whether the error is retryable
func (e *SummaryError) IsRetryable() bool {
	if e.Retryable {
		return true
	}
	return IsRetryable(e.Code)
}

// GetRetryDelay returns the recommended retry delay
func (e *SummaryError) GetRetryDelay() time.Duration {
	if e.RetryAfter != nil {
		return *e.RetryAfter
	}
	return 0
}

// UserMessage returns the user-facing message, falling back to the
// registry description when none was set.
func (e *SummaryError) UserMessage() string {
	if e.UserMsg != "" {
		return e.UserMsg
	}
	return GetErrorCodeInfo(e.Code).Description
}

// ToMap converts the error to a map representation
func (e *SummaryError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"timestamp": e.Timestamp,
		"retryable": e.IsRetryable(),
	}

	if e.BatchID != "" {
		result["batch_id"] = e.BatchID
	}
	if e.Owner != "" {
		result["owner"] = e.Owner
	}
	if e.RequestID != "" {
		result["request_id"] = e.RequestID
	}
	if e.Segment > 0 {
		result["segment"] = e.Segment
	}
	if e.Context != "" {
		result["context"] = e.Context
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	if e.Diagnostics != nil {
		result["diagnostics"] = e.Diagnostics
	}
	if e.RetryAfter != nil {
		result["retry_after"] = e.RetryAfter.String()
	}
	if e.AttemptCount > 0 {
		result["attempt_count"] = e.AttemptCount
	}

	return result
}

// MultiError represents multiple errors that occurred
type MultiError struct {
	Errors []error `json:"errors"`
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors occurred (%d errors)", len(e.Errors))
}

// Add adds an error to the multi-error
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// IsEmpty returns true if no errors are present
func (e *MultiError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// ErrorOrNil returns the multi-error if it contains errors, otherwise nil
func (e *MultiError) ErrorOrNil() error {
	if e.IsEmpty() {
		return nil
	}
	return e
}

// First returns the first error, or nil if none
func (e *MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Count returns the number of errors
func (e *MultiError) Count() int {
	return len(e.Errors)
}

// Constructor functions

// New creates a new SummaryError
func New(code ErrorCode, message string) *SummaryError {
	return &SummaryError{
		Code:      code,
		Message:   message,
		Severity:  GetSeverity(code),
		Timestamp: time.Now(),
		Retryable: IsRetryable(code),
	}
}

// Newf creates a new SummaryError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SummaryError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a SummaryError
func Wrap(err error, code ErrorCode, message string) *SummaryError {
	return New(code, message).WithCause(err)
}

// Wrapf wraps an existing error with a SummaryError and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *SummaryError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// NewMultiError creates a new MultiError
func NewMultiError() *MultiError {
	return &MultiError{
		Errors: make([]error, 0),
	}
}

// Convenience constructors for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *SummaryError {
	return New(ErrInvalidInput, message)
}

// NewAuthorizationError creates an authorization error
func NewAuthorizationError(message string) *SummaryError {
	return New(ErrPermissionDenied, message)
}

// NewConfigError creates a configuration error
func NewConfigError(message string) *SummaryError {
	return New(ErrInvalidConfig, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *SummaryError {
	return New(ErrSummarizeTimeout, message).WithRetryAfter(5 * time.Second)
}

// NewConnectionError creates a connection error
func NewConnectionError(message string) *SummaryError {
	return New(ErrConnectionFailed, message)
}

// NewStorageError creates a storage error
func NewStorageError(message string) *SummaryError {
	return New(ErrStorageFailed, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *SummaryError {
	return New(ErrInternal, message)
}

// Error classification functions

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return GetCategory(sumErr.Code) == "validation"
	}
	return false
}

// IsAuthorizationError checks if error is an authorization error
func IsAuthorizationError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return GetCategory(sumErr.Code) == "authorization"
	}
	return false
}

// IsNetworkError checks if error is a network error
func IsNetworkError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return GetCategory(sumErr.Code) == "network"
	}
	return false
}

// IsTimeoutError checks if error is a timeout error
func IsTimeoutError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return GetCategory(sumErr.Code) == "timeout"
	}
	return false
}

// IsStorageError checks if error is a storage error
func IsStorageError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return GetCategory(sumErr.Code) == "storage"
	}
	return false
}

// IsRetryableError checks if error is retryable
func IsRetryableError(err error) bool {
	if sumErr, ok := err.(*SummaryError); ok {
		return sumErr.IsRetryable()
	}
	return false
}

// Error extraction functions

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	if sumErr, ok := err.(*SummaryError); ok {
		return sumErr.Code
	}
	return ErrInternal
}

// GetErrorMessage extracts the error message from an error
func GetErrorMessage(err error) string {
	if sumErr, ok := err.(*SummaryError); ok {
		return sumErr.Message
	}
	return err.Error()
}

// GetErrorBatch extracts the batch reference from an error
func GetErrorBatch(err error) string {
	if sumErr, ok := err.(*SummaryError); ok {
		return sumErr.BatchID
	}
	return ""
}
