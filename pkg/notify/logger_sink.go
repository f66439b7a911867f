package notify

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/logger"
)

// LoggerSink writes every notification to the structured logger. It is
// the default sink when no push transport is wired up.
type LoggerSink struct {
	logger logger.Logger
}

// NewLoggerSink creates a sink backed by the given logger
func NewLoggerSink(log logger.Logger) *LoggerSink {
	if log == nil {
		log = logger.Discard
	}
	return &LoggerSink{logger: log}
}

func (s *LoggerSink) ProgressUpdate(batchID string, snap batch.ProgressSnapshot) {
	s.logger.Debug("Progress update",
		"batchId", batchID,
		"stage", snap.Stage,
		"stageProgress", snap.StageProgress,
		"overallProgress", snap.OverallProgress,
		"completed", snap.CompletedSegments,
		"failed", snap.FailedSegments,
		"total", snap.TotalSegments)
}

func (s *LoggerSink) StatusChange(batchID string, status batch.Status, message string) {
	s.logger.Info("Batch status changed", "batchId", batchID, "status", status, "message", message)
}

func (s *LoggerSink) SegmentCompleted(batchID string, index int, result batch.SegmentStatus) {
	s.logger.Debug("Segment completed",
		"batchId", batchID,
		"index", index,
		"status", result.Status,
		"retries", result.RetryCount,
		"duration", result.Duration)
}

func (s *LoggerSink) BatchCompleted(batchID string, view batch.View) {
	s.logger.Info("Batch completed",
		"batchId", batchID,
		"status", view.Status,
		"completed", view.Stats.CompletedSegments,
		"failed", view.Stats.FailedSegments,
		"retries", view.Stats.TotalRetries)
}

func (s *LoggerSink) Error(batchID string, message string) {
	s.logger.Error("Batch error", "batchId", batchID, "error", message)
}

func (s *LoggerSink) CancellationRequested(batchID string, request batch.CancellationRequest) {
	s.logger.Info("Cancellation requested",
		"batchId", batchID,
		"owner", request.Owner,
		"reason", request.Reason,
		"savePartial", request.SavePartial,
		"force", request.Force)
}

func (s *LoggerSink) PartialResultSaved(batchID string, partialID string) {
	s.logger.Info("Partial result saved", "batchId", batchID, "partialId", partialID)
}

func (s *LoggerSink) RecoveryCompleted(batchID string, success bool, duration time.Duration) {
	s.logger.Info("Recovery completed", "batchId", batchID, "success", success, "duration", duration)
}

func (s *LoggerSink) UIReset(batchID string) {
	s.logger.Debug("UI reset", "batchId", batchID)
}

func (s *LoggerSink) ProgressReset(batchID string) {
	s.logger.Debug("Progress reset", "batchId", batchID)
}

func (s *LoggerSink) UIRecoveryCompleted(batchID string) {
	s.logger.Debug("UI recovery completed", "batchId", batchID)
}

var _ Sink = (*LoggerSink)(nil)
