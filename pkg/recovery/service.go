package recovery

import (
	"context"
	"runtime"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/notify"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
	"github.com/kart-io/summaryhub/pkg/utils/idgen"
)

// staleAge is how long a batch or partial result may sit without
// progress before it is considered abandoned
const staleAge = 30 * time.Minute

// defaultTerminalRetention is how long finished batches stay queryable
// before the periodic sweep evicts them
const defaultTerminalRetention = time.Hour

// BatchController is the orchestrator surface recovery needs
type BatchController interface {
	Result(batchID string) *batch.View
	LastUpdated(batchID string) (time.Time, bool)
	ForceFailStale(batchID string) int
	EvictTerminalBefore(cutoff time.Time) int
}

// CancellationInspector reports whether cancellation was requested
type CancellationInspector interface {
	IsRequested(batchID string) bool
}

// Service scans for and recovers abandoned batches
type Service struct {
	controller BatchController
	cancels    CancellationInspector
	partials   partial.Repository
	pinger     RepositoryPinger
	sink       notify.Sink
	clock      clock.Clock
	logger     logger.Logger
}

// NewService creates a recovery service. The pinger may be nil when the
// repository offers no health ping.
func NewService(controller BatchController, cancels CancellationInspector, partials partial.Repository, pinger RepositoryPinger, sink notify.Sink, clk clock.Clock, log logger.Logger) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	if clk == nil {
		clk = clock.Real
	}
	if log == nil {
		log = logger.Discard
	}
	return &Service{
		controller: controller,
		cancels:    cancels,
		partials:   partials,
		pinger:     pinger,
		sink:       sink,
		clock:      clk,
		logger:     log,
	}
}

// SweepTerminal evicts batches that finished longer than the retention
// ago, keeping the batch registry and cancellation entries bounded. A
// non-positive retention falls back to the default.
func (s *Service) SweepTerminal(retention time.Duration) int {
	if retention <= 0 {
		retention = defaultTerminalRetention
	}
	evicted := s.controller.EvictTerminalBefore(s.clock.Now().Add(-retention))
	if evicted > 0 {
		s.logger.Info("Evicted finished batches", "count", evicted, "retention", retention)
	}
	return evicted
}

// RequiresRecovery reports whether a batch needs recovery: a partial
// result stuck in Processing past the stale age, or a requested
// cancellation with tasks still not terminal
func (s *Service) RequiresRecovery(ctx context.Context, batchID string) bool {
	if s.partials != nil {
		results, err := s.partials.ListByBatch(ctx, batchID)
		if err != nil {
			s.logger.Warn("Failed to inspect partial results", "batchId", batchID, "error", err)
		} else {
			cutoff := s.clock.Now().Add(-staleAge)
			for _, result := range results {
				if result.Status == partial.StatusProcessing && result.CreatedAt.Before(cutoff) {
					return true
				}
			}
		}
	}

	if s.cancels != nil && s.cancels.IsRequested(batchID) {
		if view := s.controller.Result(batchID); view != nil {
			for _, task := range view.Tasks {
				if !task.Status.IsTerminal() {
					return true
				}
			}
		}
	}

	// A batch with non-terminal tasks and no observed progress past the
	// stale age is abandoned even without a cancellation request
	if view := s.controller.Result(batchID); view != nil && !view.Status.IsTerminal() {
		if lastUpdated, ok := s.controller.LastUpdated(batchID); ok {
			if s.clock.Now().Sub(lastUpdated) > staleAge {
				return true
			}
		}
	}

	return false
}

// Recover runs the ordered recovery steps for a batch and returns the
// full record
func (s *Service) Recover(ctx context.Context, batchID, reason string) (*Record, error) {
	if s.controller.Result(batchID) == nil {
		return nil, errors.New(errors.ErrBatchNotFound, "unknown batch").WithBatch(batchID)
	}

	start := s.clock.Now()
	record := &Record{
		ID:        idgen.GenerateRecoveryID(),
		BatchID:   batchID,
		Reason:    reason,
		StartedAt: start,
	}

	s.logger.Info("Recovery started", "batchId", batchID, "recoveryId", record.ID, "reason", reason)

	s.runStep(record, "cleanup_batch_state", func() (string, error) {
		failed := s.controller.ForceFailStale(batchID)
		if failed == 0 {
			return "no stale tasks found", nil
		}
		return "", nil
	})

	s.runStep(record, "release_resources", func() (string, error) {
		runtime.GC()
		return "", nil
	})

	s.runStep(record, "reset_ui", func() (string, error) {
		s.sink.UIReset(batchID)
		s.sink.ProgressReset(batchID)
		s.sink.UIRecoveryCompleted(batchID)
		return "", nil
	})

	var report HealthReport
	s.runStep(record, "health_check", func() (string, error) {
		report = s.HealthCheck(ctx)
		if report.Overall == StatusCritical {
			return "", errors.New(errors.ErrInternal, "system health is critical after recovery")
		}
		return "", nil
	})
	record.SystemState = report

	s.runStep(record, "self_repair", func() (string, error) {
		// Nothing is auto-fixable beyond what the earlier steps already
		// did; the step stays in the record so operators see it ran
		if report.Overall == StatusHealthy {
			return "no repair needed", nil
		}
		return "degraded components require operator attention", nil
	})

	record.FinishedAt = s.clock.Now()
	record.Success = true
	for _, step := range record.Steps {
		if step.Status == StepFailed {
			record.Success = false
			break
		}
	}

	duration := record.FinishedAt.Sub(start)
	s.sink.RecoveryCompleted(batchID, record.Success, duration)
	s.logger.Info("Recovery finished",
		"batchId", batchID,
		"recoveryId", record.ID,
		"success", record.Success,
		"duration", duration)

	return record, nil
}

// runStep executes one named step and appends its outcome to the record
func (s *Service) runStep(record *Record, name string, fn func() (string, error)) {
	step := Step{
		Name:      name,
		Status:    StepInProgress,
		StartedAt: s.clock.Now(),
	}

	message, err := fn()
	step.FinishedAt = s.clock.Now()
	step.Message = message
	if err != nil {
		step.Status = StepFailed
		step.Message = err.Error()
		s.logger.Error("Recovery step failed", "batchId", record.BatchID, "step", name, "error", err)
	} else {
		step.Status = StepCompleted
	}

	record.Steps = append(record.Steps, step)
}
