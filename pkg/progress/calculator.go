// Package progress derives progress snapshots from segment-status
// projections. The calculator is pure: snapshots in, snapshots out, with
// the clock injected through the input.
package progress

import (
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
)

// Input is everything the calculator needs for one snapshot
type Input struct {
	BatchID     string
	BatchStatus batch.Status
	Stage       batch.Stage
	Tasks       []batch.SegmentStatus
	StartedAt   time.Time
	Now         time.Time
	// PreviousOverall is the last published overall progress; the new
	// snapshot clamps to it so progress never regresses
	PreviousOverall float64
}

// Calculator computes stage and overall progress, ETA and speed
type Calculator struct {
	weights     map[string]float64
	multipliers map[string]float64
}

// NewCalculator creates a calculator with the given progress configuration
func NewCalculator(cfg config.ProgressConfig) *Calculator {
	weights := cfg.StageWeights
	if len(weights) == 0 {
		weights = config.DefaultStageWeights()
	}
	multipliers := cfg.StageTimeMultipliers
	if len(multipliers) == 0 {
		multipliers = config.DefaultStageTimeMultipliers()
	}
	return &Calculator{weights: weights, multipliers: multipliers}
}

// Calculate produces one progress snapshot
func (c *Calculator) Calculate(in Input) batch.ProgressSnapshot {
	completed, failed, current, currentTitle := summarizeTasks(in.Tasks)
	total := len(in.Tasks)

	stageProgress := c.stageProgress(in.Stage, in.Tasks)
	overall := c.overallProgress(in, stageProgress, completed, failed, total)
	if overall < in.PreviousOverall {
		overall = in.PreviousOverall
	}

	elapsed := in.Now.Sub(in.StartedAt)
	speed := computeSpeed(in.Tasks, elapsed)

	snap := batch.ProgressSnapshot{
		BatchID:             in.BatchID,
		Stage:               in.Stage,
		StageProgress:       stageProgress,
		OverallProgress:     overall,
		ElapsedMs:           elapsed.Milliseconds(),
		CompletedSegments:   completed,
		FailedSegments:      failed,
		TotalSegments:       total,
		CurrentSegment:      current,
		CurrentSegmentTitle: currentTitle,
		Speed:               speed,
		UpdatedAt:           in.Now,
	}

	if eta := c.estimateRemaining(in.Stage, elapsed, completed, total); eta != nil {
		snap.EstimatedRemainingMs = eta
	}

	return snap
}

// stageProgress applies the stage-specific formula, on a 0-100 scale
func (c *Calculator) stageProgress(stage batch.Stage, tasks []batch.SegmentStatus) float64 {
	total := len(tasks)

	switch stage {
	case batch.StageInitializing, batch.StageSegmenting, batch.StageFinalizing:
		// Essentially binary stages: reported as complete once entered,
		// the weighting keeps their contribution small
		return 100

	case batch.StageBatchProcessing:
		if total == 0 {
			return 0
		}
		completed, _, _, _ := summarizeTasks(tasks)
		progress := 100 * float64(completed) / float64(total)
		// Fractional credit for segments currently in flight
		for _, t := range tasks {
			if t.Status == batch.TaskProcessing || t.Status == batch.TaskRetrying {
				progress += 100 * 0.5 / float64(total)
			}
		}
		return clamp(progress, 0, 100)

	case batch.StageMerging:
		if total == 0 {
			return 0
		}
		completed, _, _, _ := summarizeTasks(tasks)
		return clamp(100*float64(completed)/float64(total), 0, 100)

	default:
		return 0
	}
}

// overallProgress is the weighted sum of stage progresses up to and
// including the current stage
func (c *Calculator) overallProgress(in Input, stageProgress float64, completed, failed, total int) float64 {
	if in.BatchStatus == batch.StatusCompleted {
		return 100
	}
	if in.BatchStatus == batch.StatusFailed {
		if total == 0 {
			return 0
		}
		return clamp(100*float64(completed)/float64(total), 0, 100)
	}

	order := []batch.Stage{
		batch.StageInitializing,
		batch.StageSegmenting,
		batch.StageBatchProcessing,
		batch.StageMerging,
		batch.StageFinalizing,
	}

	overall := 0.0
	for _, stage := range order {
		weight := c.weights[string(stage)]
		if stage == in.Stage {
			overall += weight * stageProgress / 100
			break
		}
		overall += weight
	}
	return clamp(overall, 0, 100)
}

// estimateRemaining yields a remaining-time estimate in milliseconds, or
// nil when indeterminate
func (c *Calculator) estimateRemaining(stage batch.Stage, elapsed time.Duration, completed, total int) *int64 {
	if completed == 0 || elapsed <= 0 || total == 0 {
		return nil
	}

	avgPerSegment := float64(elapsed.Milliseconds()) / float64(completed)
	remaining := float64(total - completed)

	multiplier, ok := c.multipliers[string(stage)]
	if !ok {
		multiplier = 1.0
	}

	// 10% headroom over the raw estimate
	estimate := int64(avgPerSegment * remaining * multiplier * 1.1)
	return &estimate
}

// summarizeTasks counts terminal tasks and finds the lowest-index
// in-flight segment
func summarizeTasks(tasks []batch.SegmentStatus) (completed, failed, current int, currentTitle string) {
	current = -1
	for _, t := range tasks {
		switch t.Status {
		case batch.TaskCompleted:
			completed++
		case batch.TaskFailed:
			failed++
		case batch.TaskProcessing, batch.TaskRetrying:
			if current == -1 || t.Index < current {
				current = t.Index
				currentTitle = t.Title
			}
		}
	}
	return completed, failed, current, currentTitle
}

// computeSpeed derives throughput statistics from completed tasks
func computeSpeed(tasks []batch.SegmentStatus, elapsed time.Duration) batch.ProcessingSpeed {
	var speed batch.ProcessingSpeed

	completed := 0
	chars := 0
	var totalLatency, minLatency, maxLatency time.Duration
	for _, t := range tasks {
		if t.Status != batch.TaskCompleted {
			continue
		}
		completed++
		chars += t.CharCount
		totalLatency += t.Duration
		if minLatency == 0 || t.Duration < minLatency {
			minLatency = t.Duration
		}
		if t.Duration > maxLatency {
			maxLatency = t.Duration
		}
	}
	if completed == 0 || elapsed <= 0 {
		return speed
	}

	minutes := elapsed.Minutes()
	seconds := elapsed.Seconds()
	speed.SegmentsPerMinute = float64(completed) / minutes
	speed.CharsPerSecond = float64(chars) / seconds
	speed.AvgLatency = totalLatency / time.Duration(completed)
	speed.MinLatency = minLatency
	speed.MaxLatency = maxLatency
	speed.Throughput = float64(completed) / seconds

	// Efficiency compares actual throughput to the single-stream ideal
	// implied by the average latency, capped at 100
	if speed.AvgLatency > 0 {
		ideal := 1000 / float64(speed.AvgLatency.Milliseconds())
		if ideal > 0 {
			speed.EfficiencyPercent = clamp(speed.Throughput/ideal*100, 0, 100)
		}
	}

	return speed
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
