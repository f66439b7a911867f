package notify

import (
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// DedupSink suppresses duplicate progress updates published for the same
// batch within a short window. Snapshots with identical stage, completed
// count and rounded overall progress are dropped when they arrive inside
// the window; terminal snapshots always pass through. All other
// notification kinds are forwarded unconditionally and in call order.
type DedupSink struct {
	next   Sink
	window time.Duration
	clock  clock.Clock

	mutex sync.Mutex
	last  map[string]progressKey
}

type progressKey struct {
	stage     batch.Stage
	completed int
	overall   float64 // rounded to one decimal
	at        time.Time
}

// NewDedupSink wraps a sink with duplicate suppression
func NewDedupSink(next Sink, window time.Duration, clk clock.Clock) *DedupSink {
	if clk == nil {
		clk = clock.Real
	}
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	return &DedupSink{
		next:   next,
		window: window,
		clock:  clk,
		last:   make(map[string]progressKey),
	}
}

func (d *DedupSink) ProgressUpdate(batchID string, snap batch.ProgressSnapshot) {
	terminal := snap.OverallProgress >= 100 ||
		snap.CompletedSegments+snap.FailedSegments == snap.TotalSegments && snap.TotalSegments > 0 && snap.Stage == batch.StageFinalizing

	key := progressKey{
		stage:     snap.Stage,
		completed: snap.CompletedSegments,
		overall:   float64(int(snap.OverallProgress*10)) / 10,
	}

	d.mutex.Lock()
	now := d.clock.Now()
	prev, seen := d.last[batchID]
	duplicate := seen &&
		prev.stage == key.stage &&
		prev.completed == key.completed &&
		prev.overall == key.overall &&
		now.Sub(prev.at) < d.window
	if !duplicate || terminal {
		key.at = now
		d.last[batchID] = key
	}
	d.mutex.Unlock()

	if duplicate && !terminal {
		return
	}
	d.next.ProgressUpdate(batchID, snap)
}

func (d *DedupSink) StatusChange(batchID string, status batch.Status, message string) {
	d.next.StatusChange(batchID, status, message)
}

func (d *DedupSink) SegmentCompleted(batchID string, index int, result batch.SegmentStatus) {
	d.next.SegmentCompleted(batchID, index, result)
}

func (d *DedupSink) BatchCompleted(batchID string, view batch.View) {
	d.forget(batchID)
	d.next.BatchCompleted(batchID, view)
}

func (d *DedupSink) Error(batchID string, message string) {
	d.next.Error(batchID, message)
}

func (d *DedupSink) CancellationRequested(batchID string, request batch.CancellationRequest) {
	d.next.CancellationRequested(batchID, request)
}

func (d *DedupSink) PartialResultSaved(batchID string, partialID string) {
	d.next.PartialResultSaved(batchID, partialID)
}

func (d *DedupSink) RecoveryCompleted(batchID string, success bool, duration time.Duration) {
	d.forget(batchID)
	d.next.RecoveryCompleted(batchID, success, duration)
}

func (d *DedupSink) UIReset(batchID string) {
	d.forget(batchID)
	d.next.UIReset(batchID)
}

func (d *DedupSink) ProgressReset(batchID string) {
	d.forget(batchID)
	d.next.ProgressReset(batchID)
}

func (d *DedupSink) UIRecoveryCompleted(batchID string) {
	d.next.UIRecoveryCompleted(batchID)
}

// forget drops the suppression state for a batch so a restarted or reset
// batch starts with a clean window
func (d *DedupSink) forget(batchID string) {
	d.mutex.Lock()
	delete(d.last, batchID)
	d.mutex.Unlock()
}

var _ Sink = (*DedupSink)(nil)
