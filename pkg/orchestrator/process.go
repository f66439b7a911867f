package orchestrator

import (
	"context"
	"math"
	"time"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/merge"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/pkg/progress"
)

// runBatch is the per-batch goroutine: it dispatches workers, drains
// their events, and drives the batch to a terminal status
func (o *Orchestrator) runBatch(run *batchRun) {
	defer close(run.done)

	b := run.b
	run.setStatus(batch.StatusQueued, batch.StatusProcessing)
	o.sink.StatusChange(b.ID, batch.StatusProcessing, "batch processing started")

	o.publishProgress(run, batch.StageInitializing)
	o.publishProgress(run, batch.StageSegmenting)
	o.publishProgress(run, batch.StageBatchProcessing)

	// Dispatch in index order; completion order is unconstrained
	for index := range b.Tasks {
		run.workers.Add(1)
		go o.runWorker(run, index)
	}
	workersDone := make(chan struct{})
	go func() {
		run.workers.Wait()
		close(workersDone)
	}()

	draining := true
	for draining {
		select {
		case ev := <-run.events:
			o.applyAndPublish(run, ev)
		case <-workersDone:
			for {
				select {
				case ev := <-run.events:
					o.applyAndPublish(run, ev)
					continue
				default:
				}
				break
			}
			draining = false
		}
	}

	o.finishBatch(run)
}

// applyAndPublish folds one worker event into the model and publishes
// the segment result and a fresh progress snapshot, in that order
func (o *Orchestrator) applyAndPublish(run *batchRun, ev taskEvent) {
	run.applyEvent(ev)

	if ev.status.IsTerminal() {
		view := run.snapshot()
		if ev.index >= 0 && ev.index < len(view.Tasks) {
			o.sink.SegmentCompleted(run.b.ID, ev.index, view.Tasks[ev.index])
		}
	}
	o.publishProgress(run, batch.StageBatchProcessing)
}

// publishProgress computes a snapshot for the given stage, stores it,
// and pushes it to the sink. The previous overall value is carried so
// progress never regresses.
func (o *Orchestrator) publishProgress(run *batchRun, stage batch.Stage) {
	view := run.snapshot()

	previous := 0.0
	if snap := run.lastSnapshot(); snap != nil {
		previous = snap.OverallProgress
	}

	snap := o.calculator.Calculate(progress.Input{
		BatchID:         run.b.ID,
		BatchStatus:     view.Status,
		Stage:           stage,
		Tasks:           view.Tasks,
		StartedAt:       view.StartedAt,
		Now:             o.clock.Now(),
		PreviousOverall: previous,
	})
	run.storeSnapshot(snap)
	o.sink.ProgressUpdate(run.b.ID, snap)
}

// finishBatch resolves the terminal status once every worker has exited
func (o *Orchestrator) finishBatch(run *batchRun) {
	b := run.b

	// All workers are out of their LLM calls now
	run.token.SetCheckpoint(true)

	if run.token.Requested() {
		o.completeCancelled(run)
		return
	}

	view := run.snapshot()
	completed := view.Stats.CompletedSegments
	failed := view.Stats.FailedSegments

	if completed == 0 {
		o.completeFailed(run, "no segments completed")
		return
	}
	if failed > 0 && o.config.Merge.RequireAllSegments {
		o.completeFailed(run, "some segments failed and merge requires all segments")
		return
	}

	finalSummary, err := o.mergeCompleted(run, view)
	if err != nil {
		o.logger.Error("Merge failed", "batchId", b.ID, "error", err)
		o.completeFailed(run, "merge failed: "+err.Error())
		return
	}

	o.publishProgress(run, batch.StageFinalizing)

	now := o.clock.Now()
	run.mutex.Lock()
	b.FinalSummary = finalSummary
	b.Status = batch.StatusCompleted
	b.CompletedAt = &now
	run.mutex.Unlock()

	o.sink.StatusChange(b.ID, batch.StatusCompleted, "batch completed")
	o.publishProgress(run, batch.StageFinalizing) // terminal snapshot, overall 100
	o.sink.BatchCompleted(b.ID, run.snapshot())

	if o.telemetry != nil {
		o.telemetry.RecordBatchFinished(context.Background(), string(batch.StatusCompleted))
	}
	o.logger.Info("Batch completed",
		"batchId", b.ID,
		"completed", completed,
		"failed", failed,
		"duration", now.Sub(b.StartedAt))
}

// mergeCompleted runs the merge stage; a single-segment batch short
// circuits to that segment's summary
func (o *Orchestrator) mergeCompleted(run *batchRun, view batch.View) (string, error) {
	o.publishProgress(run, batch.StageMerging)

	completed := partial.CollectCompleted(view.Tasks)
	if len(view.Tasks) == 1 && len(completed) == 1 {
		return completed[0].Summary, nil
	}

	result, err := o.merger.Merge(run.token.Context(), completed, merge.Strategy(o.config.Merge.Strategy), merge.Preferences{})
	if err != nil {
		return "", err
	}
	if result.Summary == "" {
		return "", errors.New(errors.ErrMergeFailed, "merge produced an empty summary").WithBatch(run.b.ID)
	}
	return result.Summary, nil
}

// completeCancelled marks the batch Cancelled; no BatchCompleted is
// ever published for it
func (o *Orchestrator) completeCancelled(run *batchRun) {
	now := o.clock.Now()
	run.mutex.Lock()
	if !run.b.Status.IsTerminal() {
		run.b.Status = batch.StatusCancelled
		run.b.CompletedAt = &now
	}
	run.mutex.Unlock()

	o.sink.StatusChange(run.b.ID, batch.StatusCancelled, "batch cancelled")
	if o.telemetry != nil {
		o.telemetry.RecordBatchFinished(context.Background(), string(batch.StatusCancelled))
	}
	o.logger.Info("Batch cancelled", "batchId", run.b.ID)
}

// completeFailed marks the batch Failed and publishes the error
func (o *Orchestrator) completeFailed(run *batchRun, message string) {
	now := o.clock.Now()
	run.mutex.Lock()
	if !run.b.Status.IsTerminal() {
		run.b.Status = batch.StatusFailed
		run.b.CompletedAt = &now
	}
	run.mutex.Unlock()

	o.sink.Error(run.b.ID, message)
	o.sink.StatusChange(run.b.ID, batch.StatusFailed, message)
	o.publishProgress(run, batch.StageBatchProcessing)
	if o.telemetry != nil {
		o.telemetry.RecordBatchFinished(context.Background(), string(batch.StatusFailed))
	}
	o.logger.Error("Batch failed", "batchId", run.b.ID, "reason", message)
}

// runWorker processes one segment task: permit acquisition, the retry
// loop around the LLM call, and cooperative pause/cancel handling
func (o *Orchestrator) runWorker(run *batchRun, index int) {
	defer run.workers.Done()

	token := run.token
	content := run.segments[index].Content

	// Per-batch concurrency slot
	select {
	case run.slots <- struct{}{}:
	case <-token.RequestedChan():
		return
	case <-token.Context().Done():
		return
	}
	defer func() { <-run.slots }()

	if !run.awaitResume() {
		return
	}
	if token.Requested() {
		return
	}

	permit, err := o.controller.Acquire(token.Context(), run.b.ID)
	if err != nil {
		return
	}
	defer permit.Release()

	startedAt := o.clock.Now()
	run.events <- taskEvent{index: index, status: batch.TaskProcessing, startedAt: &startedAt}

	attempt := 0
	for {
		if !run.awaitResume() {
			return
		}
		if token.Requested() {
			return
		}

		summary, latency, err := o.summarizeOnce(run, index, attempt, content)
		o.controller.RecordOutcome(latency, err == nil)
		if o.telemetry != nil {
			o.telemetry.RecordSegmentCall(context.Background(), latency, err == nil)
		}

		if err == nil {
			completedAt := o.clock.Now()
			run.events <- taskEvent{
				index:       index,
				status:      batch.TaskCompleted,
				summary:     summary,
				retryCount:  attempt,
				completedAt: &completedAt,
				duration:    completedAt.Sub(startedAt),
			}
			return
		}

		if errors.IsRetryableError(err) && attempt < o.config.Retry.MaxRetries && !token.Requested() {
			attempt++
			run.events <- taskEvent{
				index:      index,
				status:     batch.TaskRetrying,
				errMsg:     err.Error(),
				retryCount: attempt,
			}
			o.logger.Warn("Segment failed, retrying",
				"batchId", run.b.ID,
				"index", index,
				"attempt", attempt,
				"error", err)

			select {
			case <-o.clock.After(o.backoffDelay(attempt)):
			case <-token.RequestedChan():
				return
			case <-token.Context().Done():
				return
			}
			continue
		}

		completedAt := o.clock.Now()
		run.events <- taskEvent{
			index:       index,
			status:      batch.TaskFailed,
			errMsg:      err.Error(),
			retryCount:  attempt,
			completedAt: &completedAt,
			duration:    completedAt.Sub(startedAt),
		}
		o.logger.Error("Segment failed permanently",
			"batchId", run.b.ID,
			"index", index,
			"retries", attempt,
			"error", err)
		return
	}
}

// summarizeOnce issues one LLM call with the per-call timeout, tracking
// the safe-checkpoint window around it
func (o *Orchestrator) summarizeOnce(run *batchRun, index, attempt int, content string) (string, time.Duration, error) {
	callCtx := run.token.Context()
	var cancelCall context.CancelFunc
	if timeout := o.config.Summarizer.Timeout; timeout > 0 {
		callCtx, cancelCall = context.WithTimeout(callCtx, timeout)
		defer cancelCall()
	}

	run.markCall(true)
	start := o.clock.Now()
	summary, err := o.client.Summarize(callCtx, content)
	latency := o.clock.Now().Sub(start)
	run.markCall(false)

	return summary, latency, err
}

// backoffDelay computes the exponential retry delay for the given
// attempt, capped by the configured maximum
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	base := o.config.Retry.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	multiplier := o.config.Retry.BackoffMultiplier
	if multiplier <= 1 {
		multiplier = 2
	}

	delay := time.Duration(float64(base) * math.Pow(multiplier, float64(attempt-1)))
	if max := o.config.Retry.MaxDelay; max > 0 && delay > max {
		delay = max
	}
	return delay
}
