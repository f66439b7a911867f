// Package notify defines the notification sink the core publishes to.
// The push transport is external; implementations adapt these calls to
// websockets, server-sent events, message queues, or plain logs. Sink
// calls are fire-and-log-on-failure and must never block core logic.
package notify

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
)

// Sink receives every externally visible event the core emits
type Sink interface {
	// ProgressUpdate publishes a progress snapshot for a batch
	ProgressUpdate(batchID string, snapshot batch.ProgressSnapshot)
	// StatusChange publishes a batch status transition
	StatusChange(batchID string, status batch.Status, message string)
	// SegmentCompleted publishes one finished segment task
	SegmentCompleted(batchID string, index int, result batch.SegmentStatus)
	// BatchCompleted publishes the terminal batch view
	BatchCompleted(batchID string, view batch.View)
	// Error publishes a batch-level error message
	Error(batchID string, message string)
	// CancellationRequested publishes an accepted cancellation request
	CancellationRequested(batchID string, request batch.CancellationRequest)
	// PartialResultSaved publishes the id of a persisted partial result
	PartialResultSaved(batchID string, partialID string)
	// RecoveryCompleted publishes the outcome of a recovery run
	RecoveryCompleted(batchID string, success bool, duration time.Duration)
	// UIReset asks subscribers to clear stale batch UI state
	UIReset(batchID string)
	// ProgressReset asks subscribers to reset progress displays
	ProgressReset(batchID string)
	// UIRecoveryCompleted tells subscribers recovery-driven cleanup is done
	UIRecoveryCompleted(batchID string)
}

// NopSink discards all notifications
type NopSink struct{}

func (NopSink) ProgressUpdate(string, batch.ProgressSnapshot)           {}
func (NopSink) StatusChange(string, batch.Status, string)               {}
func (NopSink) SegmentCompleted(string, int, batch.SegmentStatus)       {}
func (NopSink) BatchCompleted(string, batch.View)                       {}
func (NopSink) Error(string, string)                                    {}
func (NopSink) CancellationRequested(string, batch.CancellationRequest) {}
func (NopSink) PartialResultSaved(string, string)                       {}
func (NopSink) RecoveryCompleted(string, bool, time.Duration)           {}
func (NopSink) UIReset(string)                                          {}
func (NopSink) ProgressReset(string)                                    {}
func (NopSink) UIRecoveryCompleted(string)                              {}

var _ Sink = NopSink{}
