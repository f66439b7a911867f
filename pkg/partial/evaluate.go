package partial

import (
	"context"
	"fmt"
	"sort"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/merge"
)

// CollectCompleted filters to completed tasks with a non-empty summary,
// sorted by index
func CollectCompleted(tasks []batch.SegmentStatus) []batch.SegmentStatus {
	completed := make([]batch.SegmentStatus, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == batch.TaskCompleted && t.Summary != "" {
			completed = append(completed, t)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].Index < completed[j].Index })
	return completed
}

// Evaluate scores the completed subset against the full segment count.
// The merger, when available, provides the coherence estimate; otherwise
// coherence falls back to index adjacency.
func Evaluate(ctx context.Context, completed []batch.SegmentStatus, total int, merger merge.Merger) QualityEvaluation {
	eval := QualityEvaluation{}
	if total <= 0 {
		eval.OverallQuality = QualityUnusable
		eval.RecommendedAction = ActionDiscard
		eval.Warnings = append(eval.Warnings, "no segments to evaluate")
		return eval
	}

	eval.Completeness = float64(len(completed)) / float64(total)
	eval.Coverage = computeCoverage(completed, total)
	eval.Coherence = computeCoherence(ctx, completed, merger)
	eval.MissingTopics = missingTopics(completed, total)

	score := 0.7*eval.Completeness + 0.3*eval.Coherence
	switch {
	case score < 0.2:
		eval.OverallQuality = QualityUnusable
		eval.RecommendedAction = ActionDiscard
	case score < 0.4:
		eval.OverallQuality = QualityPoor
		eval.RecommendedAction = ActionConsiderContinue
	case score < 0.6:
		eval.OverallQuality = QualityAcceptable
		eval.RecommendedAction = ActionReviewRequired
	case score < 0.8:
		eval.OverallQuality = QualityGood
		eval.RecommendedAction = ActionRecommend
	default:
		eval.OverallQuality = QualityExcellent
		eval.RecommendedAction = ActionRecommend
	}

	eval.Warnings = buildWarnings(eval, completed, total)
	return eval
}

// computeCoverage splits the index range into thirds and measures the
// completed density of each, plus run length and gap counts
func computeCoverage(completed []batch.SegmentStatus, total int) Coverage {
	cov := Coverage{}
	if len(completed) == 0 {
		return cov
	}

	third := total / 3
	if third == 0 {
		third = 1
	}
	var begin, middle, end int
	var beginTotal, middleTotal, endTotal int
	for i := 0; i < total; i++ {
		switch {
		case i < third:
			beginTotal++
		case i < 2*third:
			middleTotal++
		default:
			endTotal++
		}
	}
	for _, t := range completed {
		switch {
		case t.Index < third:
			begin++
		case t.Index < 2*third:
			middle++
		default:
			end++
		}
	}
	if beginTotal > 0 {
		cov.Beginning = float64(begin) / float64(beginTotal)
	}
	if middleTotal > 0 {
		cov.Middle = float64(middle) / float64(middleTotal)
	}
	if endTotal > 0 {
		cov.End = float64(end) / float64(endTotal)
	}

	run := 1
	cov.MaxContinuousLength = 1
	for i := 1; i < len(completed); i++ {
		if completed[i].Index == completed[i-1].Index+1 {
			run++
			if run > cov.MaxContinuousLength {
				cov.MaxContinuousLength = run
			}
		} else {
			run = 1
			cov.CoverageGaps++
		}
	}
	return cov
}

// computeCoherence prefers the merger's preview estimate and falls back
// to the fraction of adjacent completed pairs with consecutive indices
func computeCoherence(ctx context.Context, completed []batch.SegmentStatus, merger merge.Merger) float64 {
	if len(completed) == 0 {
		return 0
	}
	if len(completed) == 1 {
		return 1
	}

	if merger != nil {
		preview, err := merger.Preview(ctx, completed, merge.StrategyBalanced, merge.Preferences{})
		if err == nil {
			return clamp01(preview.EstimatedQuality)
		}
	}

	consecutive := 0
	for i := 1; i < len(completed); i++ {
		if completed[i].Index == completed[i-1].Index+1 {
			consecutive++
		}
	}
	return float64(consecutive) / float64(len(completed)-1)
}

// missingTopics describes the leading, trailing, and mid-range gaps in
// user-readable terms
func missingTopics(completed []batch.SegmentStatus, total int) []string {
	if len(completed) == 0 {
		return []string{fmt.Sprintf("all %d sections missing", total)}
	}

	var topics []string
	first := completed[0].Index
	last := completed[len(completed)-1].Index

	if first > 0 {
		topics = append(topics, fmt.Sprintf("beginning of document (sections 1-%d)", first))
	}
	for i := 1; i < len(completed); i++ {
		prev, cur := completed[i-1].Index, completed[i].Index
		if cur > prev+1 {
			topics = append(topics, fmt.Sprintf("sections %d-%d", prev+2, cur))
		}
	}
	if last < total-1 {
		topics = append(topics, fmt.Sprintf("end of document (sections %d-%d)", last+2, total))
	}
	return topics
}

// buildWarnings emits rule-based advisories for a low-quality evaluation
func buildWarnings(eval QualityEvaluation, completed []batch.SegmentStatus, total int) []string {
	var warnings []string
	if eval.Completeness < 0.3 {
		warnings = append(warnings, "less than 30% of the document was summarized")
	}
	if eval.Coherence < 0.5 {
		warnings = append(warnings, "completed sections are fragmented; the partial summary may read disjointedly")
	}
	if eval.Coverage.CoverageGaps > 2 {
		warnings = append(warnings, fmt.Sprintf("%d gaps in section coverage", eval.Coverage.CoverageGaps))
	}
	if len(completed) > 0 && completed[0].Index > 0 {
		warnings = append(warnings, "the beginning of the document is missing")
	}
	if len(completed) > 0 && completed[len(completed)-1].Index < total-1 {
		warnings = append(warnings, "the end of the document is missing")
	}
	return warnings
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
