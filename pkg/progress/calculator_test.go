package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/config"
)

func tasks(statuses ...batch.TaskStatus) []batch.SegmentStatus {
	out := make([]batch.SegmentStatus, len(statuses))
	for i, s := range statuses {
		out[i] = batch.SegmentStatus{Index: i, Status: s, CharCount: 100, Duration: 200 * time.Millisecond}
	}
	return out
}

func newCalc() *Calculator {
	return NewCalculator(config.Default().Progress)
}

func TestCalculate_BatchProcessingProgress(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusProcessing,
		Stage:       batch.StageBatchProcessing,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskCompleted, batch.TaskProcessing, batch.TaskPending),
		StartedAt:   start,
		Now:         start.Add(2 * time.Second),
	})

	assert.Equal(t, 2, snap.CompletedSegments)
	assert.Equal(t, 0, snap.FailedSegments)
	assert.Equal(t, 4, snap.TotalSegments)
	assert.Equal(t, 2, snap.CurrentSegment)

	// 2/4 complete plus half credit for the in-flight segment
	assert.InDelta(t, 62.5, snap.StageProgress, 0.01)

	// Weighted: init 5 + segmenting 10 + 70*0.625
	assert.InDelta(t, 5+10+70*0.625, snap.OverallProgress, 0.01)
}

func TestCalculate_CompletedReports100(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusCompleted,
		Stage:       batch.StageFinalizing,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskCompleted),
		StartedAt:   start,
		Now:         start.Add(time.Second),
	})
	assert.Equal(t, 100.0, snap.OverallProgress)
}

func TestCalculate_FailedReportsCompletedFraction(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusFailed,
		Stage:       batch.StageBatchProcessing,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskFailed, batch.TaskFailed, batch.TaskFailed),
		StartedAt:   start,
		Now:         start.Add(time.Second),
	})
	assert.InDelta(t, 25.0, snap.OverallProgress, 0.01)
}

func TestCalculate_MonotonicClamp(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:         "b1",
		BatchStatus:     batch.StatusProcessing,
		Stage:           batch.StageBatchProcessing,
		Tasks:           tasks(batch.TaskPending, batch.TaskPending),
		StartedAt:       start,
		Now:             start.Add(time.Second),
		PreviousOverall: 42,
	})
	assert.Equal(t, 42.0, snap.OverallProgress, "progress must never regress")
}

func TestCalculate_ETA(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	// No completed tasks: indeterminate
	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusProcessing,
		Stage:       batch.StageBatchProcessing,
		Tasks:       tasks(batch.TaskProcessing, batch.TaskPending),
		StartedAt:   start,
		Now:         start.Add(time.Second),
	})
	assert.Nil(t, snap.EstimatedRemainingMs)

	// 2 of 4 done in 2s: ~1s/segment * 2 remaining * 1.0 * 1.1 = 2200ms
	snap = calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusProcessing,
		Stage:       batch.StageBatchProcessing,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskCompleted, batch.TaskPending, batch.TaskPending),
		StartedAt:   start,
		Now:         start.Add(2 * time.Second),
	})
	require.NotNil(t, snap.EstimatedRemainingMs)
	assert.InDelta(t, 2200, float64(*snap.EstimatedRemainingMs), 1)

	// Merging stage scales the estimate down
	snap = calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusProcessing,
		Stage:       batch.StageMerging,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskCompleted, batch.TaskPending, batch.TaskPending),
		StartedAt:   start,
		Now:         start.Add(2 * time.Second),
	})
	require.NotNil(t, snap.EstimatedRemainingMs)
	assert.InDelta(t, 660, float64(*snap.EstimatedRemainingMs), 1)
}

func TestCalculate_Speed(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusProcessing,
		Stage:       batch.StageBatchProcessing,
		Tasks:       tasks(batch.TaskCompleted, batch.TaskCompleted, batch.TaskCompleted, batch.TaskPending),
		StartedAt:   start,
		Now:         start.Add(time.Minute),
	})

	assert.InDelta(t, 3.0, snap.Speed.SegmentsPerMinute, 0.01)
	assert.InDelta(t, 5.0, snap.Speed.CharsPerSecond, 0.01) // 300 chars / 60s
	assert.Equal(t, 200*time.Millisecond, snap.Speed.AvgLatency)
	assert.Equal(t, 200*time.Millisecond, snap.Speed.MinLatency)
	assert.Equal(t, 200*time.Millisecond, snap.Speed.MaxLatency)
	assert.LessOrEqual(t, snap.Speed.EfficiencyPercent, 100.0)
}

func TestCalculate_SingleSegmentReaches100(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	snap := calc.Calculate(Input{
		BatchID:     "b1",
		BatchStatus: batch.StatusCompleted,
		Stage:       batch.StageFinalizing,
		Tasks:       tasks(batch.TaskCompleted),
		StartedAt:   start,
		Now:         start.Add(time.Second),
	})
	assert.Equal(t, 100.0, snap.OverallProgress)
	assert.Equal(t, 1, snap.CompletedSegments)
}

func TestSnapshotSequence_Monotonic(t *testing.T) {
	calc := newCalc()
	start := time.Now()

	statuses := [][]batch.TaskStatus{
		{batch.TaskPending, batch.TaskPending, batch.TaskPending},
		{batch.TaskProcessing, batch.TaskPending, batch.TaskPending},
		{batch.TaskCompleted, batch.TaskProcessing, batch.TaskPending},
		{batch.TaskCompleted, batch.TaskCompleted, batch.TaskProcessing},
		{batch.TaskCompleted, batch.TaskCompleted, batch.TaskCompleted},
	}

	prev := 0.0
	for i, st := range statuses {
		snap := calc.Calculate(Input{
			BatchID:         "b1",
			BatchStatus:     batch.StatusProcessing,
			Stage:           batch.StageBatchProcessing,
			Tasks:           tasks(st...),
			StartedAt:       start,
			Now:             start.Add(time.Duration(i+1) * time.Second),
			PreviousOverall: prev,
		})
		assert.GreaterOrEqual(t, snap.OverallProgress, prev, "snapshot %d regressed", i)
		prev = snap.OverallProgress
	}
}
