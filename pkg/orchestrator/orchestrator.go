// Package orchestrator drives batches end to end: it owns the batch
// registry, spawns supervised segment workers, aggregates their
// transitions into progress snapshots, runs the merge step, and
// coordinates pause, resume, and cancellation.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/summaryhub/observability"
	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/cancel"
	"github.com/kart-io/summaryhub/pkg/concurrency"
	"github.com/kart-io/summaryhub/pkg/config"
	"github.com/kart-io/summaryhub/pkg/errors"
	"github.com/kart-io/summaryhub/pkg/logger"
	"github.com/kart-io/summaryhub/pkg/merge"
	"github.com/kart-io/summaryhub/pkg/notify"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/pkg/progress"
	"github.com/kart-io/summaryhub/pkg/summarizer"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
	"github.com/kart-io/summaryhub/pkg/utils/idgen"
)

// Orchestrator is the central batch coordinator
type Orchestrator struct {
	config     *config.Config
	client     summarizer.Client
	merger     merge.Merger
	controller *concurrency.Controller
	calculator *progress.Calculator
	sink       notify.Sink
	cancels    *cancel.Service
	partials   *partial.Handler
	telemetry  *observability.TelemetryProvider
	clock      clock.Clock
	logger     logger.Logger

	mutex sync.RWMutex
	runs  map[string]*batchRun
}

// Options carries the orchestrator's collaborators. Nil fields fall
// back to safe defaults where one exists.
type Options struct {
	Config     *config.Config
	Client     summarizer.Client
	Merger     merge.Merger
	Sink       notify.Sink
	Repository partial.Repository
	Telemetry  *observability.TelemetryProvider
	Clock      clock.Clock
	Logger     logger.Logger
}

// New creates an orchestrator and its owned services
func New(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, errors.New(errors.ErrInvalidConfig, "summarizer client is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = cfg.GetLogger()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.NewLoggerSink(log)
	}
	sink = notify.NewDedupSink(sink, cfg.Notification.DuplicateSuppression, clk)

	merger := opts.Merger
	if merger == nil {
		merger = merge.NewLLMMerger(opts.Client, log)
	}
	repo := opts.Repository
	if repo == nil {
		repo = partial.NewMemoryRepository()
	}

	o := &Orchestrator{
		config:     cfg,
		client:     opts.Client,
		merger:     merger,
		controller: concurrency.NewController(cfg.Concurrency, clk, log),
		calculator: progress.NewCalculator(cfg.Progress),
		sink:       sink,
		telemetry:  opts.Telemetry,
		clock:      clk,
		logger:     log,
		runs:       make(map[string]*batchRun),
	}
	o.partials = partial.NewHandler(repo, merger, sink, cfg, clk, log)
	o.cancels = cancel.NewService(cfg.Cancellation, o.savePartial, sink, clk, log)

	return o, nil
}

// PartialResults exposes the partial-result handler for the transport layer
func (o *Orchestrator) PartialResults() *partial.Handler {
	return o.partials
}

// Cancellations exposes the cancellation service, mainly for recovery
func (o *Orchestrator) Cancellations() *cancel.Service {
	return o.cancels
}

// Sink exposes the composed notification sink so collaborators built
// outside the orchestrator, such as recovery, publish through the same
// deduplicated pipeline
func (o *Orchestrator) Sink() notify.Sink {
	return o.sink
}

// ControllerStats reports the adaptive concurrency controller's state
func (o *Orchestrator) ControllerStats() concurrency.Stats {
	return o.controller.GetStats()
}

// StartBatch validates the input, registers a batch, and begins
// processing asynchronously. The returned id can be used immediately
// with Progress, Pause, and Cancel.
func (o *Orchestrator) StartBatch(segments []batch.Segment, originalText, owner string, concurrencyHint int) (string, error) {
	if len(segments) == 0 {
		return "", errors.New(errors.ErrEmptySegments, "cannot start a batch without segments").WithOwner(owner)
	}
	if originalText == "" {
		return "", errors.New(errors.ErrInvalidInput, "cannot start a batch without original text").WithOwner(owner)
	}
	for _, seg := range segments {
		if seg.Content == "" {
			return "", errors.New(errors.ErrInvalidInput, "segment content cannot be empty").WithSegment(seg.Index).WithOwner(owner)
		}
	}

	limit := concurrencyHint
	if limit <= 0 {
		limit = o.config.Concurrency.DefaultLimit
	}
	if limit > o.config.Concurrency.MaxLimit {
		limit = o.config.Concurrency.MaxLimit
	}

	b := &batch.Batch{
		ID:               idgen.GenerateBatchID(),
		Owner:            owner,
		OriginalText:     originalText,
		Status:           batch.StatusQueued,
		ConcurrencyLimit: limit,
		StartedAt:        o.clock.Now(),
	}
	b.Tasks = make([]*batch.SegmentTask, len(segments))
	for i, seg := range segments {
		b.Tasks[i] = batch.NewSegmentTask(seg)
	}
	b.Stats.TotalSegments = len(b.Tasks)

	token := o.cancels.Register(b.ID, context.Background())
	token.SetCheckpoint(true) // idle batches are always at a safe point

	run := newBatchRun(b, segments, token)

	o.mutex.Lock()
	o.runs[b.ID] = run
	o.mutex.Unlock()

	if o.telemetry != nil {
		o.telemetry.RecordBatchStarted(context.Background(), owner)
	}
	o.logger.Info("Batch started",
		"batchId", b.ID,
		"owner", owner,
		"segments", len(segments),
		"concurrencyLimit", limit)

	go o.runBatch(run)

	return b.ID, nil
}

// Progress returns the latest published snapshot, or nil when the batch
// is unknown
func (o *Orchestrator) Progress(batchID string) *batch.ProgressSnapshot {
	run := o.run(batchID)
	if run == nil {
		return nil
	}
	return run.lastSnapshot()
}

// Result returns the batch view, including the final summary and
// per-task results once terminal; pre-terminal it is a partial view
func (o *Orchestrator) Result(batchID string) *batch.View {
	run := o.run(batchID)
	if run == nil {
		return nil
	}
	view := run.snapshot()
	return &view
}

// Pause suspends a processing batch. In-flight LLM calls finish; new
// tasks wait until Resume or Cancel.
func (o *Orchestrator) Pause(batchID string) bool {
	run := o.run(batchID)
	if run == nil {
		return false
	}
	if !run.pause() {
		return false
	}

	o.sink.StatusChange(batchID, batch.StatusPaused, "batch paused")
	o.logger.Info("Batch paused", "batchId", batchID)
	return true
}

// Resume releases a paused batch back to processing
func (o *Orchestrator) Resume(batchID string) bool {
	run := o.run(batchID)
	if run == nil {
		return false
	}
	if !run.resume() {
		return false
	}

	o.sink.StatusChange(batchID, batch.StatusProcessing, "batch resumed")
	o.logger.Info("Batch resumed", "batchId", batchID)
	return true
}

// Cancel requests cancellation of a non-terminal batch. Repeated calls
// are idempotent.
func (o *Orchestrator) Cancel(ctx context.Context, req batch.CancellationRequest) (batch.CancellationResult, error) {
	run := o.run(req.BatchID)
	if run == nil {
		return batch.CancellationResult{}, errors.New(errors.ErrBatchNotFound, "unknown batch").WithBatch(req.BatchID)
	}
	if status := run.status(); status.IsTerminal() && !o.cancels.IsRequested(req.BatchID) {
		return batch.CancellationResult{}, errors.New(errors.ErrIllegalTransition, "batch is already terminal").
			WithBatch(req.BatchID).WithDiagnostic("status", string(status))
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = o.clock.Now()
	}

	// A paused batch must not sit on the pause gate forever once
	// cancellation is in flight; resume so workers can observe it
	defer run.resume()

	return o.cancels.Request(ctx, req)
}

// ListByOwner returns progress snapshots of the owner's batches, most
// recent first by start time
func (o *Orchestrator) ListByOwner(owner string, page, size int) []batch.ProgressSnapshot {
	o.mutex.RLock()
	matched := make([]*batchRun, 0)
	for _, run := range o.runs {
		if run.owner() == owner {
			matched = append(matched, run)
		}
	}
	o.mutex.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].startedAt().After(matched[j].startedAt())
	})

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	snapshots := make([]batch.ProgressSnapshot, 0, end-start)
	for _, run := range matched[start:end] {
		if snap := run.lastSnapshot(); snap != nil {
			snapshots = append(snapshots, *snap)
		} else {
			snapshots = append(snapshots, batch.ProgressSnapshot{
				BatchID:       run.b.ID,
				Stage:         batch.StageInitializing,
				TotalSegments: run.totalSegments(),
				UpdatedAt:     run.startedAt(),
			})
		}
	}
	return snapshots
}

// Close force-cancels remaining batches, waits for their runs to
// settle, and stops the concurrency controller
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mutex.RLock()
	runs := make([]*batchRun, 0, len(o.runs))
	for _, run := range o.runs {
		runs = append(runs, run)
	}
	o.mutex.RUnlock()

	for _, run := range runs {
		if !run.status().IsTerminal() {
			req := batch.CancellationRequest{
				BatchID:     run.b.ID,
				Owner:       run.owner(),
				Reason:      batch.CancelSystemTimeout,
				Force:       true,
				SubmittedAt: o.clock.Now(),
			}
			if _, err := o.cancels.Request(ctx, req); err != nil {
				o.logger.Warn("Failed to cancel batch during shutdown", "batchId", run.b.ID, "error", err)
			}
		}
	}

	for _, run := range runs {
		select {
		case <-run.done:
		case <-ctx.Done():
			o.controller.Close()
			return ctx.Err()
		}
	}

	o.controller.Close()
	return nil
}

// ForceFailStale transitions every non-terminal task of a batch to
// Failed and, when tasks were affected, marks the batch Failed. Used by
// recovery to clean up abandoned batches; returns how many tasks were
// transitioned.
func (o *Orchestrator) ForceFailStale(batchID string) int {
	run := o.run(batchID)
	if run == nil {
		return 0
	}

	now := o.clock.Now()
	run.mutex.Lock()
	failed := 0
	for _, task := range run.b.Tasks {
		if task.Status.IsTerminal() {
			continue
		}
		task.Status = batch.TaskFailed
		task.LastError = "task abandoned, failed by recovery"
		completedAt := now
		task.CompletedAt = &completedAt
		failed++
	}
	if failed > 0 && !run.b.Status.IsTerminal() {
		run.b.Status = batch.StatusFailed
		run.b.CompletedAt = &now
	}
	completed, failedCount := run.b.CountTasks()
	run.b.Stats.CompletedSegments = completed
	run.b.Stats.FailedSegments = failedCount
	run.mutex.Unlock()

	if failed > 0 {
		o.sink.StatusChange(batchID, batch.StatusFailed, "stale tasks failed by recovery")
		o.logger.Warn("Recovery failed stale tasks", "batchId", batchID, "count", failed)
	}
	return failed
}

// Evict drops a terminal batch from the registry and releases its
// cancellation entry. Non-terminal batches are left alone; returns
// whether the batch was evicted.
func (o *Orchestrator) Evict(batchID string) bool {
	run := o.run(batchID)
	if run == nil || !run.status().IsTerminal() {
		return false
	}

	o.mutex.Lock()
	delete(o.runs, batchID)
	o.mutex.Unlock()

	o.cancels.Unregister(batchID)
	o.logger.Debug("Batch evicted", "batchId", batchID)
	return true
}

// EvictTerminalBefore evicts every terminal batch whose last task
// transition is older than the cutoff, returning how many were removed
func (o *Orchestrator) EvictTerminalBefore(cutoff time.Time) int {
	o.mutex.RLock()
	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	o.mutex.RUnlock()

	evicted := 0
	for _, id := range ids {
		updated, ok := o.LastUpdated(id)
		if !ok || updated.After(cutoff) {
			continue
		}
		if o.Evict(id) {
			evicted++
		}
	}
	return evicted
}

// LastUpdated reports the most recent task transition for a batch, or
// its start time when nothing has run yet
func (o *Orchestrator) LastUpdated(batchID string) (time.Time, bool) {
	run := o.run(batchID)
	if run == nil {
		return time.Time{}, false
	}

	run.mutex.Lock()
	defer run.mutex.Unlock()
	latest := run.b.StartedAt
	for _, task := range run.b.Tasks {
		if task.StartedAt != nil && task.StartedAt.After(latest) {
			latest = *task.StartedAt
		}
		if task.CompletedAt != nil && task.CompletedAt.After(latest) {
			latest = *task.CompletedAt
		}
	}
	return latest, true
}

// run looks up a batch run by id
func (o *Orchestrator) run(batchID string) *batchRun {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.runs[batchID]
}

// savePartial is the hook the cancellation service invokes during a
// graceful cancel with save-partial set
func (o *Orchestrator) savePartial(ctx context.Context, batchID, owner string) (string, error) {
	run := o.run(batchID)
	if run == nil {
		return "", errors.New(errors.ErrBatchNotFound, "unknown batch").WithBatch(batchID)
	}
	if owner != "" && run.owner() != owner {
		return "", errors.New(errors.ErrPermissionDenied, "batch belongs to a different owner").WithBatch(batchID)
	}

	view := run.snapshot()
	result, err := o.partials.ProcessPartialResult(ctx, batchID, run.owner(), view.Tasks, run.segments)
	if err != nil {
		return "", err
	}
	return result.ID, nil
}
