package partial

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/merge"
	"github.com/kart-io/summaryhub/pkg/notify"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// Handler assembles, evaluates, and manages partial results
type Handler struct {
	repo   Repository
	merger merge.Merger
	sink   notify.Sink
	clock  clock.Clock
	logger logger.Logger
	config config.PartialResultConfig
	expiry time.Duration
}

// NewHandler creates a partial-result handler
func NewHandler(repo Repository, merger merge.Merger, sink notify.Sink, cfg *config.Config, clk clock.Clock, log logger.Logger) *Handler {
	if sink == nil {
		sink = notify.NopSink{}
	}
	if clk == nil {
		clk = clock.Real
	}
	if log == nil {
		log = logger.Discard
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		repo:   repo,
		merger: merger,
		sink:   sink,
		clock:  clk,
		logger: log,
		config: cfg.PartialResult,
		expiry: cfg.PartialResultExpiry(),
	}
}

// ProcessPartialResult assembles and persists a partial result for a
// batch. Tasks are the batch's segment snapshots; segments carry the
// source text used for samples. On merge failure the summary falls back
// to ordered concatenation with gap markers.
func (h *Handler) ProcessPartialResult(ctx context.Context, batchID, owner string, tasks []batch.SegmentStatus, segments []batch.Segment) (*PartialResult, error) {
	total := len(segments)
	if total == 0 {
		total = len(tasks)
	}
	completed := CollectCompleted(tasks)
	now := h.clock.Now()

	evaluation := Evaluate(ctx, completed, total, h.merger)

	summary := ""
	if len(completed) > 0 {
		result, err := h.merger.Merge(ctx, completed, merge.StrategyBalanced, merge.Preferences{})
		if err == nil {
			summary = result.Summary
		} else {
			h.logger.Warn("Partial merge failed, falling back to concatenation",
				"batchId", batchID, "error", err)
			summary, err = merge.Concatenate(completed)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrPartialAssemblyFailed, "failed to assemble partial summary").WithBatch(batchID)
			}
		}
	}

	completion := 0.0
	if total > 0 {
		completion = 100 * float64(len(completed)) / float64(total)
	}

	result := &PartialResult{
		ID:                   uuid.NewString(),
		BatchID:              batchID,
		Owner:                owner,
		CompletedTasks:       completed,
		TotalSegments:        total,
		CompletionPercentage: completion,
		PartialSummary:       summary,
		Evaluation:           evaluation,
		TextSample:           h.textSample(completed, segments),
		CancelledAt:          now,
		Status:               StatusPendingUserDecision,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := h.repo.Save(ctx, result); err != nil {
		return nil, errors.Wrap(err, errors.ErrStorageFailed, "failed to persist partial result").WithBatch(batchID)
	}

	h.sink.PartialResultSaved(batchID, result.ID)
	h.logger.Info("Partial result saved",
		"batchId", batchID,
		"partialId", result.ID,
		"completed", len(completed),
		"total", total,
		"quality", evaluation.OverallQuality)

	return result, nil
}

// Get returns a partial result; mutating access is owner-scoped but
// reads only require knowledge of the id
func (h *Handler) Get(ctx context.Context, id string) (*PartialResult, error) {
	return h.repo.Get(ctx, id)
}

// UpdateStatus transitions a partial result; the caller must be its owner
func (h *Handler) UpdateStatus(ctx context.Context, id, owner string, status Status, comment string) (*PartialResult, error) {
	result, err := h.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.Owner != owner {
		return nil, errors.New(errors.ErrPermissionDenied, "partial result belongs to a different owner").WithDiagnostic("id", id)
	}

	now := h.clock.Now()
	result.Status = status
	result.UpdatedAt = now
	if comment != "" {
		result.UserComment = comment
	}
	if status == StatusAccepted {
		result.AcceptedAt = &now
	}

	if err := h.repo.Update(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByOwner returns the owner's partial results, most recent first
func (h *Handler) ListByOwner(ctx context.Context, owner string, page, size int) ([]*PartialResult, int, error) {
	return h.repo.ListByOwner(ctx, owner, page, size)
}

// CleanupExpired transitions pending records older than the configured
// horizon to Expired and returns how many were transitioned
func (h *Handler) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := h.clock.Now().Add(-h.expiry)
	stale, err := h.repo.ListByStatusBefore(ctx, StatusPendingUserDecision, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, result := range stale {
		result.Status = StatusExpired
		result.UpdatedAt = h.clock.Now()
		if err := h.repo.Update(ctx, result); err != nil {
			h.logger.Warn("Failed to expire partial result", "partialId", result.ID, "error", err)
			continue
		}
		expired++
	}

	if expired > 0 {
		h.logger.Info("Expired pending partial results", "count", expired)
	}
	return expired, nil
}

// CanContinueFrom reports whether a partial result is a viable base for
// resuming work: quality at least acceptable and completeness >= 30%
func (h *Handler) CanContinueFrom(ctx context.Context, id, owner string) (bool, error) {
	result, err := h.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if result.Owner != owner {
		return false, errors.New(errors.ErrPermissionDenied, "partial result belongs to a different owner").WithDiagnostic("id", id)
	}

	return result.Evaluation.OverallQuality.atLeast(QualityAcceptable) &&
		result.Evaluation.Completeness >= 0.3, nil
}

// textSample takes the leading characters of up to the configured number
// of completed segments' source text
func (h *Handler) textSample(completed []batch.SegmentStatus, segments []batch.Segment) string {
	if len(segments) == 0 || len(completed) == 0 {
		return ""
	}

	byIndex := make(map[int]string, len(segments))
	for _, seg := range segments {
		byIndex[seg.Index] = seg.Content
	}

	maxSegments := h.config.SampleSegments
	if maxSegments <= 0 {
		maxSegments = 3
	}
	sampleLen := h.config.SampleLength
	if sampleLen <= 0 {
		sampleLen = 200
	}

	var samples []string
	for _, task := range completed {
		if len(samples) >= maxSegments {
			break
		}
		content, ok := byIndex[task.Index]
		if !ok || content == "" {
			continue
		}
		runes := []rune(content)
		if len(runes) > sampleLen {
			content = string(runes[:sampleLen])
		}
		samples = append(samples, content)
	}
	return strings.Join(samples, "\n...\n")
}
