package batch

import "time"

// CancelReason enumerates why a cancellation was requested
type CancelReason string

const (
	CancelUserInitiated      CancelReason = "user_initiated"
	CancelSystemTimeout      CancelReason = "system_timeout"
	CancelResourceExhaustion CancelReason = "resource_exhaustion"
	CancelAdmin              CancelReason = "admin"
	CancelOther              CancelReason = "other"
)

// CancellationRequest describes one cancel submission for a batch
type CancellationRequest struct {
	BatchID     string       `json:"batch_id"`
	Owner       string       `json:"owner"`
	Reason      CancelReason `json:"reason"`
	SavePartial bool         `json:"save_partial"`
	Force       bool         `json:"force"`
	Comment     string       `json:"comment,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// CancellationResult reports the outcome of a cancellation request
type CancellationResult struct {
	BatchID            string `json:"batch_id"`
	Success            bool   `json:"success"`
	Forced             bool   `json:"forced"`
	PartialSaved       bool   `json:"partial_saved"`
	PartialResultID    string `json:"partial_result_id,omitempty"`
	GracefulDurationMs int64  `json:"graceful_duration_ms"`
	Message            string `json:"message,omitempty"`
}
