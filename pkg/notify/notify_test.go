package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// recordingSink captures forwarded notifications for assertions
type recordingSink struct {
	NopSink
	mutex     sync.Mutex
	progress  []batch.ProgressSnapshot
	statuses  []batch.Status
	completed []string
}

func (r *recordingSink) ProgressUpdate(batchID string, snap batch.ProgressSnapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.progress = append(r.progress, snap)
}

func (r *recordingSink) StatusChange(batchID string, status batch.Status, message string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingSink) BatchCompleted(batchID string, view batch.View) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.completed = append(r.completed, batchID)
}

func snapAt(stage batch.Stage, completed int, overall float64) batch.ProgressSnapshot {
	return batch.ProgressSnapshot{
		BatchID:           "b1",
		Stage:             stage,
		CompletedSegments: completed,
		TotalSegments:     4,
		OverallProgress:   overall,
	}
}

func TestDedupSink_SuppressesDuplicatesInWindow(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))

	assert.Len(t, rec.progress, 1)
}

func TestDedupSink_DistinctSnapshotsPass(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 2, 50))
	sink.ProgressUpdate("b1", snapAt(batch.StageMerging, 4, 90))

	assert.Len(t, rec.progress, 3)
}

func TestDedupSink_DuplicatePassesAfterWindow(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	clk.Advance(600 * time.Millisecond)
	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))

	assert.Len(t, rec.progress, 2)
}

func TestDedupSink_TerminalAlwaysDelivered(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageFinalizing, 4, 100))
	sink.ProgressUpdate("b1", snapAt(batch.StageFinalizing, 4, 100))

	assert.Len(t, rec.progress, 2)
}

func TestDedupSink_BatchesIsolated(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	sink.ProgressUpdate("b2", snapAt(batch.StageBatchProcessing, 1, 30))

	assert.Len(t, rec.progress, 2)
}

func TestDedupSink_ForwardsOtherEvents(t *testing.T) {
	rec := &recordingSink{}
	sink := NewDedupSink(rec, 500*time.Millisecond, clock.NewFake(time.Now()))

	sink.StatusChange("b1", batch.StatusProcessing, "started")
	sink.StatusChange("b1", batch.StatusProcessing, "started")
	sink.BatchCompleted("b1", batch.View{ID: "b1"})

	assert.Len(t, rec.statuses, 2, "status changes are never deduplicated")
	assert.Equal(t, []string{"b1"}, rec.completed)
}

func TestDedupSink_CompletionResetsWindow(t *testing.T) {
	rec := &recordingSink{}
	clk := clock.NewFake(time.Now())
	sink := NewDedupSink(rec, 500*time.Millisecond, clk)

	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))
	sink.BatchCompleted("b1", batch.View{ID: "b1"})
	sink.ProgressUpdate("b1", snapAt(batch.StageBatchProcessing, 1, 30))

	assert.Len(t, rec.progress, 2)
}

func TestLoggerSink_ImplementsSink(t *testing.T) {
	var sink Sink = NewLoggerSink(nil)
	// Calls must not panic with a nil-backed logger
	sink.ProgressUpdate("b1", snapAt(batch.StageSegmenting, 0, 10))
	sink.StatusChange("b1", batch.StatusQueued, "queued")
	sink.Error("b1", "boom")
	sink.UIReset("b1")
}
