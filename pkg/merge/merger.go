// Package merge turns completed segment summaries into one final
// summary. The merger is a pluggable collaborator: the orchestrator and
// the partial-result handler only see the Merger interface.
package merge

import (
	"context"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
)

// Strategy selects how segment summaries are combined
type Strategy string

const (
	// StrategyConcatenate joins summaries in index order without rewriting
	StrategyConcatenate Strategy = "concatenate"
	// StrategyBalanced asks the LLM for a rewrite balancing brevity and coverage
	StrategyBalanced Strategy = "balanced"
	// StrategyDetailed asks the LLM to preserve as much detail as possible
	StrategyDetailed Strategy = "detailed"
	// StrategyConcise asks the LLM for the shortest faithful rewrite
	StrategyConcise Strategy = "concise"
)

// Preferences tunes a merge without changing the strategy
type Preferences struct {
	// TargetLength is a soft character bound for the merged summary,
	// 0 means no preference
	TargetLength int `json:"target_length,omitempty"`
	// Language forces the output language, empty keeps the source language
	Language string `json:"language,omitempty"`
}

// Result is the outcome of a completed merge
type Result struct {
	Summary        string        `json:"summary"`
	Quality        float64       `json:"quality"` // 0-1
	ProcessingTime time.Duration `json:"processing_time"`
}

// PreviewResult is a cheap estimate of what a merge would produce
type PreviewResult struct {
	Summary           string        `json:"summary"`
	EstimatedQuality  float64       `json:"estimated_quality"` // 0-1
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Merger produces a final summary from completed segment summaries.
// Implementations must tolerate gaps in the index sequence: partial
// results merge whatever subset completed.
type Merger interface {
	Merge(ctx context.Context, completed []batch.SegmentStatus, strategy Strategy, prefs Preferences) (Result, error)
	Preview(ctx context.Context, completed []batch.SegmentStatus, strategy Strategy, prefs Preferences) (PreviewResult, error)
}

// continuity is the fraction of adjacent completed pairs whose indices
// are consecutive, used as a structural quality proxy
func continuity(completed []batch.SegmentStatus) float64 {
	if len(completed) < 2 {
		return 1
	}
	consecutive := 0
	for i := 1; i < len(completed); i++ {
		if completed[i].Index == completed[i-1].Index+1 {
			consecutive++
		}
	}
	return float64(consecutive) / float64(len(completed)-1)
}
