// Package errors provides error codes for SummaryHub
package errors

// ErrorCode represents a SummaryHub error code
type ErrorCode string

// Validation Error Codes
const (
	// ErrInvalidInput indicates invalid caller input
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrEmptyText indicates the submitted text is empty
	ErrEmptyText ErrorCode = "EMPTY_TEXT"

	// ErrEmptySegments indicates an empty segment list was submitted
	ErrEmptySegments ErrorCode = "EMPTY_SEGMENTS"

	// ErrTextTooLarge indicates text exceeds size limits
	ErrTextTooLarge ErrorCode = "TEXT_TOO_LARGE"
)

// Authorization Error Codes
const (
	// ErrPermissionDenied indicates the caller does not own the resource
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrUnauthenticated indicates authentication is required
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
)

// Network Error Codes
const (
	// ErrConnectionFailed indicates connection to the LLM endpoint failed
	ErrConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// ErrTransport indicates a non-retryable transport failure
	ErrTransport ErrorCode = "TRANSPORT_ERROR"
)

// Timeout Error Codes
const (
	// ErrSummarizeTimeout indicates an LLM call timed out
	ErrSummarizeTimeout ErrorCode = "SUMMARIZE_TIMEOUT"

	// ErrCancelTimeout indicates a graceful cancel exceeded its deadline
	ErrCancelTimeout ErrorCode = "CANCEL_TIMEOUT"

	// ErrDeadlineExceeded indicates a deadline was exceeded
	ErrDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
)

// Service Error Codes
const (
	// ErrServiceUnavailable indicates the LLM endpoint is unavailable
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrResponseParsing indicates the LLM response could not be parsed
	ErrResponseParsing ErrorCode = "RESPONSE_PARSING_FAILED"

	// ErrRateLimitExceeded indicates the LLM endpoint throttled the request
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// Processing Error Codes
const (
	// ErrSegmentationFailed indicates text segmentation failed
	ErrSegmentationFailed ErrorCode = "SEGMENTATION_FAILED"

	// ErrMergeFailed indicates summary merging failed
	ErrMergeFailed ErrorCode = "MERGE_FAILED"

	// ErrPartialAssemblyFailed indicates partial-result assembly failed
	ErrPartialAssemblyFailed ErrorCode = "PARTIAL_ASSEMBLY_FAILED"

	// ErrRetriesExhausted indicates a segment task exhausted its retries
	ErrRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// Storage Error Codes
const (
	// ErrStorageFailed indicates a repository operation failed
	ErrStorageFailed ErrorCode = "STORAGE_FAILED"

	// ErrNotFound indicates a resource was not found
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// System Error Codes
const (
	// ErrInternal indicates an internal system error
	ErrInternal ErrorCode = "INTERNAL_ERROR"

	// ErrResourceExhausted indicates resources are exhausted
	ErrResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"

	// ErrCancelled indicates the operation was cancelled
	ErrCancelled ErrorCode = "CANCELLED"

	// ErrBatchNotFound indicates the batch is unknown to the orchestrator
	ErrBatchNotFound ErrorCode = "BATCH_NOT_FOUND"

	// ErrIllegalTransition indicates a batch state transition is not allowed
	ErrIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
)

// Configuration Error Codes
const (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrMissingEndpoint indicates the LLM endpoint is not configured
	ErrMissingEndpoint ErrorCode = "MISSING_ENDPOINT"

	// ErrMissingCredentials indicates missing authentication credentials
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"
)

// Severity represents how serious an error is
type Severity string

// Severity levels, ordered from least to most serious
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"
)

// ErrorCodeInfo describes an error code
type ErrorCodeInfo struct {
	Code        ErrorCode `json:"code"`
	Category    string    `json:"category"`
	Severity    Severity  `json:"severity"`
	Retryable   bool      `json:"retryable"`
	UserFacing  bool      `json:"user_facing"`
	Description string    `json:"description"`
}

// errorCodeRegistry holds the classification table for all error codes
var errorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrInvalidInput:  {Code: ErrInvalidInput, Category: "validation", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "invalid input"},
	ErrEmptyText:     {Code: ErrEmptyText, Category: "validation", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "empty text"},
	ErrEmptySegments: {Code: ErrEmptySegments, Category: "validation", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "empty segment list"},
	ErrTextTooLarge:  {Code: ErrTextTooLarge, Category: "validation", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "text too large"},

	ErrPermissionDenied: {Code: ErrPermissionDenied, Category: "authorization", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "permission denied"},
	ErrUnauthenticated:  {Code: ErrUnauthenticated, Category: "authorization", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "authentication required"},

	ErrConnectionFailed: {Code: ErrConnectionFailed, Category: "network", Severity: SeverityError, Retryable: true, UserFacing: false, Description: "connection failed"},
	ErrTransport:        {Code: ErrTransport, Category: "network", Severity: SeverityError, Retryable: false, UserFacing: false, Description: "transport error"},

	ErrSummarizeTimeout: {Code: ErrSummarizeTimeout, Category: "timeout", Severity: SeverityError, Retryable: true, UserFacing: false, Description: "summarize call timed out"},
	ErrCancelTimeout:    {Code: ErrCancelTimeout, Category: "timeout", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "graceful cancel deadline exceeded"},
	ErrDeadlineExceeded: {Code: ErrDeadlineExceeded, Category: "timeout", Severity: SeverityError, Retryable: true, UserFacing: false, Description: "deadline exceeded"},

	ErrServiceUnavailable: {Code: ErrServiceUnavailable, Category: "service", Severity: SeverityError, Retryable: false, UserFacing: true, Description: "summarizer unavailable"},
	ErrResponseParsing:    {Code: ErrResponseParsing, Category: "service", Severity: SeverityError, Retryable: false, UserFacing: false, Description: "response parsing failed"},
	ErrRateLimitExceeded:  {Code: ErrRateLimitExceeded, Category: "service", Severity: SeverityWarning, Retryable: true, UserFacing: false, Description: "rate limit exceeded"},

	ErrSegmentationFailed:    {Code: ErrSegmentationFailed, Category: "processing", Severity: SeverityError, Retryable: false, UserFacing: true, Description: "segmentation failed"},
	ErrMergeFailed:           {Code: ErrMergeFailed, Category: "processing", Severity: SeverityError, Retryable: false, UserFacing: true, Description: "merge failed"},
	ErrPartialAssemblyFailed: {Code: ErrPartialAssemblyFailed, Category: "processing", Severity: SeverityError, Retryable: false, UserFacing: true, Description: "partial result assembly failed"},
	ErrRetriesExhausted:      {Code: ErrRetriesExhausted, Category: "processing", Severity: SeverityError, Retryable: false, UserFacing: true, Description: "retries exhausted"},

	ErrStorageFailed: {Code: ErrStorageFailed, Category: "storage", Severity: SeverityError, Retryable: true, UserFacing: false, Description: "storage operation failed"},
	ErrNotFound:      {Code: ErrNotFound, Category: "storage", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "not found"},
	ErrAlreadyExists: {Code: ErrAlreadyExists, Category: "storage", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "already exists"},

	ErrInternal:          {Code: ErrInternal, Category: "system", Severity: SeverityCritical, Retryable: false, UserFacing: false, Description: "internal error"},
	ErrResourceExhausted: {Code: ErrResourceExhausted, Category: "system", Severity: SeverityCritical, Retryable: false, UserFacing: false, Description: "resources exhausted"},
	ErrCancelled:         {Code: ErrCancelled, Category: "system", Severity: SeverityInfo, Retryable: false, UserFacing: true, Description: "operation cancelled"},
	ErrBatchNotFound:     {Code: ErrBatchNotFound, Category: "system", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "batch not found"},
	ErrIllegalTransition: {Code: ErrIllegalTransition, Category: "system", Severity: SeverityWarning, Retryable: false, UserFacing: true, Description: "illegal state transition"},

	ErrInvalidConfig:      {Code: ErrInvalidConfig, Category: "configuration", Severity: SeverityError, Retryable: false, UserFacing: false, Description: "invalid configuration"},
	ErrMissingEndpoint:    {Code: ErrMissingEndpoint, Category: "configuration", Severity: SeverityError, Retryable: false, UserFacing: false, Description: "missing endpoint"},
	ErrMissingCredentials: {Code: ErrMissingCredentials, Category: "configuration", Severity: SeverityError, Retryable: false, UserFacing: false, Description: "missing credentials"},
}

// GetErrorCodeInfo returns the classification for an error code
func GetErrorCodeInfo(code ErrorCode) ErrorCodeInfo {
	if info, ok := errorCodeRegistry[code]; ok {
		return info
	}
	return ErrorCodeInfo{
		Code:        code,
		Category:    "system",
		Severity:    SeverityError,
		Retryable:   false,
		UserFacing:  false,
		Description: "unknown error",
	}
}

// IsRetryable returns whether an error code is retryable.
// Only timeouts, connection failures, rate limits and storage hiccups
// are retried; everything else surfaces unchanged.
func IsRetryable(code ErrorCode) bool {
	return GetErrorCodeInfo(code).Retryable
}

// GetCategory returns the category of an error code
func GetCategory(code ErrorCode) string {
	return GetErrorCodeInfo(code).Category
}

// GetSeverity returns the severity of an error code
func GetSeverity(code ErrorCode) Severity {
	return GetErrorCodeInfo(code).Severity
}

// GetErrorCodesByCategory returns all error codes in the given category
func GetErrorCodesByCategory(category string) []ErrorCode {
	codes := make([]ErrorCode, 0)
	for code, info := range errorCodeRegistry {
		if info.Category == category {
			codes = append(codes, code)
		}
	}
	return codes
}
