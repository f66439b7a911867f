package merge

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
)

// GapMarker is inserted between summaries whose source indices are not
// consecutive, so readers can see material is missing
const GapMarker = "[... missing section ...]"

// ConcatMerger joins summaries in index order. It never calls the LLM,
// which makes it the fallback when richer mergers fail.
type ConcatMerger struct{}

// NewConcatMerger creates the concatenating merger
func NewConcatMerger() *ConcatMerger {
	return &ConcatMerger{}
}

// Merge joins the summaries with paragraph breaks and gap markers
func (m *ConcatMerger) Merge(ctx context.Context, completed []batch.SegmentStatus, _ Strategy, _ Preferences) (Result, error) {
	start := time.Now()

	summary, err := Concatenate(completed)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Summary:        summary,
		Quality:        continuity(completed),
		ProcessingTime: time.Since(start),
	}, nil
}

// Preview is identical to Merge for concatenation, since it is cheap
func (m *ConcatMerger) Preview(ctx context.Context, completed []batch.SegmentStatus, strategy Strategy, prefs Preferences) (PreviewResult, error) {
	result, err := m.Merge(ctx, completed, strategy, prefs)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{
		Summary:           result.Summary,
		EstimatedQuality:  result.Quality,
		EstimatedDuration: result.ProcessingTime,
	}, nil
}

// Concatenate is the shared ordered-join used by both this merger and
// the partial-result fallback path
func Concatenate(completed []batch.SegmentStatus) (string, error) {
	if len(completed) == 0 {
		return "", errors.New(errors.ErrEmptySegments, "no completed segments to merge")
	}

	ordered := make([]batch.SegmentStatus, len(completed))
	copy(ordered, completed)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var sb strings.Builder
	for i, task := range ordered {
		if i > 0 {
			sb.WriteString("\n\n")
			if task.Index != ordered[i-1].Index+1 {
				sb.WriteString(GapMarker)
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(strings.TrimSpace(task.Summary))
	}
	return sb.String(), nil
}

var _ Merger = (*ConcatMerger)(nil)
