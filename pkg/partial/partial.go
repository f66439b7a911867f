// Package partial assembles, scores, and persists partial results when a
// batch is cancelled or fails before completion. A partial result holds
// whichever segment summaries finished, a quality evaluation, and a
// lifecycle the owner drives (accept, reject, expire).
package partial

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
)

// Status is the lifecycle state of a partial result
type Status string

const (
	StatusProcessing          Status = "processing"
	StatusPendingUserDecision Status = "pending_user_decision"
	StatusAccepted            Status = "accepted"
	StatusRejected            Status = "rejected"
	StatusExpired             Status = "expired"
	StatusFailed              Status = "failed"
)

// OverallQuality grades a partial result for user-facing decisions
type OverallQuality string

const (
	QualityUnusable   OverallQuality = "unusable"
	QualityPoor       OverallQuality = "poor"
	QualityAcceptable OverallQuality = "acceptable"
	QualityGood       OverallQuality = "good"
	QualityExcellent  OverallQuality = "excellent"
)

// atLeast orders quality grades for threshold checks
func (q OverallQuality) atLeast(other OverallQuality) bool {
	rank := map[OverallQuality]int{
		QualityUnusable:   0,
		QualityPoor:       1,
		QualityAcceptable: 2,
		QualityGood:       3,
		QualityExcellent:  4,
	}
	return rank[q] >= rank[other]
}

// RecommendedAction maps quality to a suggested next step
type RecommendedAction string

const (
	ActionDiscard          RecommendedAction = "discard"
	ActionConsiderContinue RecommendedAction = "consider_continue"
	ActionReviewRequired   RecommendedAction = "review_required"
	ActionRecommend        RecommendedAction = "recommend"
)

// Coverage describes how the completed segment indices spread across the
// 0..total range
type Coverage struct {
	Beginning           float64 `json:"beginning"` // completed fraction of the first third
	Middle              float64 `json:"middle"`
	End                 float64 `json:"end"`
	MaxContinuousLength int     `json:"max_continuous_length"`
	CoverageGaps        int     `json:"coverage_gaps"`
}

// QualityEvaluation is the scored assessment attached to every partial result
type QualityEvaluation struct {
	Completeness      float64           `json:"completeness"` // 0-1
	Coverage          Coverage          `json:"coverage"`
	Coherence         float64           `json:"coherence"` // 0-1
	MissingTopics     []string          `json:"missing_topics,omitempty"`
	OverallQuality    OverallQuality    `json:"overall_quality"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Warnings          []string          `json:"warnings,omitempty"`
}

// PartialResult is the persisted record of a partially completed batch
type PartialResult struct {
	ID                   string                `json:"id"`
	BatchID              string                `json:"batch_id"`
	Owner                string                `json:"owner"`
	CompletedTasks       []batch.SegmentStatus `json:"completed_tasks"`
	TotalSegments        int                   `json:"total_segments"`
	CompletionPercentage float64               `json:"completion_percentage"`
	PartialSummary       string                `json:"partial_summary"`
	Evaluation           QualityEvaluation     `json:"evaluation"`
	TextSample           string                `json:"text_sample,omitempty"`
	CancelledAt          time.Time             `json:"cancelled_at"`
	Status               Status                `json:"status"`
	UserComment          string                `json:"user_comment,omitempty"`
	AcceptedAt           *time.Time            `json:"accepted_at,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}
