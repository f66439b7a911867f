package orchestrator

import (
	"sync"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/cancel"
)

// taskEvent is one worker-observed transition, applied to the batch
// model by the run goroutine
type taskEvent struct {
	index       int
	status      batch.TaskStatus
	summary     string
	errMsg      string
	retryCount  int
	startedAt   *time.Time
	completedAt *time.Time
	duration    time.Duration
}

// batchRun is the per-batch runtime state. The batch model is guarded
// by the run mutex; workers never touch it directly, they emit events.
type batchRun struct {
	b        *batch.Batch
	segments []batch.Segment
	token    *cancel.Token

	mutex    sync.Mutex
	resumeCh chan struct{} // non-nil while paused, closed on resume
	snap     *batch.ProgressSnapshot

	events chan taskEvent
	slots  chan struct{} // per-batch concurrency bound

	callMutex sync.Mutex
	inCalls   int // workers currently inside an LLM call

	workers sync.WaitGroup
	done    chan struct{}
}

func newBatchRun(b *batch.Batch, segments []batch.Segment, token *cancel.Token) *batchRun {
	return &batchRun{
		b:        b,
		segments: segments,
		token:    token,
		events:   make(chan taskEvent, len(b.Tasks)*4),
		slots:    make(chan struct{}, b.ConcurrencyLimit),
		done:     make(chan struct{}),
	}
}

func (r *batchRun) status() batch.Status {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.b.Status
}

func (r *batchRun) owner() string {
	return r.b.Owner
}

func (r *batchRun) startedAt() time.Time {
	return r.b.StartedAt
}

func (r *batchRun) totalSegments() int {
	return len(r.segments)
}

func (r *batchRun) snapshot() batch.View {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.b.Snapshot()
}

func (r *batchRun) lastSnapshot() *batch.ProgressSnapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.snap == nil {
		return nil
	}
	out := *r.snap
	return &out
}

func (r *batchRun) storeSnapshot(snap batch.ProgressSnapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.snap = &snap
}

// setStatus transitions the batch status under the run mutex and
// reports whether the transition was applied
func (r *batchRun) setStatus(from, to batch.Status) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.b.Status != from {
		return false
	}
	r.b.Status = to
	return true
}

// pause flips Processing to Paused and installs the pause gate
func (r *batchRun) pause() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.b.Status != batch.StatusProcessing {
		return false
	}
	r.b.Status = batch.StatusPaused
	r.resumeCh = make(chan struct{})
	return true
}

// resume flips Paused back to Processing and releases waiting workers
func (r *batchRun) resume() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.b.Status != batch.StatusPaused {
		return false
	}
	r.b.Status = batch.StatusProcessing
	if r.resumeCh != nil {
		close(r.resumeCh)
		r.resumeCh = nil
	}
	return true
}

// awaitResume blocks while the batch is paused; it returns false when
// cancellation was requested instead of a resume
func (r *batchRun) awaitResume() bool {
	for {
		r.mutex.Lock()
		if r.b.Status != batch.StatusPaused {
			r.mutex.Unlock()
			return true
		}
		gate := r.resumeCh
		r.mutex.Unlock()

		if gate == nil {
			return true
		}
		select {
		case <-gate:
		case <-r.token.RequestedChan():
			return false
		case <-r.token.Context().Done():
			return false
		}
	}
}

// markCall tracks workers inside an LLM call; the batch is at a safe
// checkpoint only while no call is in flight. The count and the
// checkpoint flag move under one lock so a checkpoint poller can never
// observe a safe point while another worker is entering a call.
func (r *batchRun) markCall(entering bool) {
	r.callMutex.Lock()
	defer r.callMutex.Unlock()
	if entering {
		r.inCalls++
	} else {
		r.inCalls--
	}
	r.token.SetCheckpoint(r.inCalls == 0)
}

// applyEvent folds one worker transition into the batch model
func (r *batchRun) applyEvent(ev taskEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if ev.index < 0 || ev.index >= len(r.b.Tasks) {
		return
	}
	task := r.b.Tasks[ev.index]
	task.Status = ev.status
	task.RetryCount = ev.retryCount
	if ev.summary != "" {
		task.Summary = ev.summary
	}
	if ev.errMsg != "" {
		task.LastError = ev.errMsg
	}
	if ev.startedAt != nil {
		task.StartedAt = ev.startedAt
	}
	if ev.completedAt != nil {
		task.CompletedAt = ev.completedAt
	}
	if ev.duration > 0 {
		task.Duration = ev.duration
	}

	if ev.status == batch.TaskRetrying {
		r.b.Stats.TotalRetries++
	}
	if ev.status.IsTerminal() {
		r.b.Stats.TotalDuration += ev.duration
	}
	completed, failed := r.b.CountTasks()
	r.b.Stats.CompletedSegments = completed
	r.b.Stats.FailedSegments = failed
}
