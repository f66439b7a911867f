package batch

import "time"

// ProcessingSpeed carries throughput statistics derived from completed tasks
type ProcessingSpeed struct {
	SegmentsPerMinute float64       `json:"segments_per_minute"`
	CharsPerSecond    float64       `json:"chars_per_second"`
	AvgLatency        time.Duration `json:"avg_latency"`
	MinLatency        time.Duration `json:"min_latency"`
	MaxLatency        time.Duration `json:"max_latency"`
	Throughput        float64       `json:"throughput"`
	EfficiencyPercent float64       `json:"efficiency_percent"`
}

// ProgressSnapshot is the value object published to subscribers on every
// observed transition. OverallProgress is monotonically non-decreasing
// for one batch until an explicit reset.
type ProgressSnapshot struct {
	BatchID              string          `json:"batch_id"`
	Stage                Stage           `json:"stage"`
	StageProgress        float64         `json:"stage_progress"`   // 0-100
	OverallProgress      float64         `json:"overall_progress"` // 0-100
	ElapsedMs            int64           `json:"elapsed_ms"`
	EstimatedRemainingMs *int64          `json:"estimated_remaining_ms,omitempty"`
	CompletedSegments    int             `json:"completed_segments"`
	FailedSegments       int             `json:"failed_segments"`
	TotalSegments        int             `json:"total_segments"`
	CurrentSegment       int             `json:"current_segment"`
	CurrentSegmentTitle  string          `json:"current_segment_title,omitempty"`
	Speed                ProcessingSpeed `json:"speed"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
