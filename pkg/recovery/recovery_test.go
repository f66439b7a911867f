package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/summaryhub/pkg/batch"
	"github.com/kart-io/summaryhub/pkg/notify"
	"github.com/kart-io/summaryhub/pkg/partial"
	"github.com/kart-io/summaryhub/pkg/utils/clock"
)

// fakeController simulates the orchestrator surface
type fakeController struct {
	mutex       sync.Mutex
	views       map[string]*batch.View
	lastUpdated map[string]time.Time
	failedCalls []string
}

func newFakeController() *fakeController {
	return &fakeController{
		views:       make(map[string]*batch.View),
		lastUpdated: make(map[string]time.Time),
	}
}

func (f *fakeController) Result(batchID string) *batch.View {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.views[batchID]
}

func (f *fakeController) LastUpdated(batchID string) (time.Time, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	t, ok := f.lastUpdated[batchID]
	return t, ok
}

func (f *fakeController) ForceFailStale(batchID string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.failedCalls = append(f.failedCalls, batchID)

	view, ok := f.views[batchID]
	if !ok {
		return 0
	}
	failed := 0
	for i := range view.Tasks {
		if !view.Tasks[i].Status.IsTerminal() {
			view.Tasks[i].Status = batch.TaskFailed
			failed++
		}
	}
	if failed > 0 {
		view.Status = batch.StatusFailed
	}
	return failed
}

func (f *fakeController) EvictTerminalBefore(cutoff time.Time) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	evicted := 0
	for id, view := range f.views {
		updated, ok := f.lastUpdated[id]
		if !ok || updated.After(cutoff) || !view.Status.IsTerminal() {
			continue
		}
		delete(f.views, id)
		delete(f.lastUpdated, id)
		evicted++
	}
	return evicted
}

type fakeCancels struct{ requested map[string]bool }

func (f *fakeCancels) IsRequested(batchID string) bool { return f.requested[batchID] }

// uiSink records the reset notifications
type uiSink struct {
	notify.NopSink
	mutex             sync.Mutex
	uiResets          []string
	progressResets    []string
	recoveryCompleted []string
	recoverySuccess   []bool
}

func (s *uiSink) UIReset(batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.uiResets = append(s.uiResets, batchID)
}

func (s *uiSink) ProgressReset(batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.progressResets = append(s.progressResets, batchID)
}

func (s *uiSink) UIRecoveryCompleted(batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recoveryCompleted = append(s.recoveryCompleted, batchID)
}

func (s *uiSink) RecoveryCompleted(batchID string, success bool, duration time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recoverySuccess = append(s.recoverySuccess, success)
}

func staleView() *batch.View {
	return &batch.View{
		ID:     "b1",
		Owner:  "alice",
		Status: batch.StatusProcessing,
		Tasks: []batch.SegmentStatus{
			{Index: 0, Status: batch.TaskCompleted, Summary: "done"},
			{Index: 1, Status: batch.TaskProcessing},
		},
	}
}

func TestRequiresRecovery_StaleBatch(t *testing.T) {
	clk := clock.NewFake(time.Now())
	controller := newFakeController()
	controller.views["b1"] = staleView()
	controller.lastUpdated["b1"] = clk.Now()

	s := NewService(controller, &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), nil, nil, clk, nil)

	assert.False(t, s.RequiresRecovery(context.Background(), "b1"), "fresh batch needs no recovery")

	clk.Advance(31 * time.Minute)
	assert.True(t, s.RequiresRecovery(context.Background(), "b1"), "no progress for over 30 minutes")
}

func TestRequiresRecovery_CancellationWithNonTerminalTasks(t *testing.T) {
	clk := clock.NewFake(time.Now())
	controller := newFakeController()
	controller.views["b1"] = staleView()
	controller.lastUpdated["b1"] = clk.Now()

	s := NewService(controller, &fakeCancels{requested: map[string]bool{"b1": true}}, partial.NewMemoryRepository(), nil, nil, clk, nil)
	assert.True(t, s.RequiresRecovery(context.Background(), "b1"))
}

func TestRequiresRecovery_StaleProcessingPartial(t *testing.T) {
	clk := clock.NewFake(time.Now())
	repo := partial.NewMemoryRepository()
	require.NoError(t, repo.Save(context.Background(), &partial.PartialResult{
		ID:        "p1",
		BatchID:   "b1",
		Owner:     "alice",
		Status:    partial.StatusProcessing,
		CreatedAt: clk.Now().Add(-31 * time.Minute),
	}))

	controller := newFakeController()
	controller.views["b1"] = &batch.View{ID: "b1", Status: batch.StatusCancelled}

	s := NewService(controller, &fakeCancels{requested: map[string]bool{}}, repo, nil, nil, clk, nil)
	assert.True(t, s.RequiresRecovery(context.Background(), "b1"))
}

func TestRecover_UnknownBatch(t *testing.T) {
	s := NewService(newFakeController(), &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), nil, nil, clock.NewFake(time.Now()), nil)

	_, err := s.Recover(context.Background(), "missing", "stale")
	require.Error(t, err)
}

func TestRecover_FullRun(t *testing.T) {
	clk := clock.NewFake(time.Now())
	controller := newFakeController()
	controller.views["b1"] = staleView()
	sink := &uiSink{}

	pinger := pingerFunc(func(ctx context.Context) error { return nil })
	s := NewService(controller, &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), pinger, sink, clk, nil)

	record, err := s.Recover(context.Background(), "b1", "stale batch")
	require.NoError(t, err)

	assert.True(t, record.Success)
	assert.Equal(t, "b1", record.BatchID)
	assert.Equal(t, "stale batch", record.Reason)
	assert.NotEmpty(t, record.ID)

	// The stale in-flight task was failed
	assert.Equal(t, []string{"b1"}, controller.failedCalls)
	assert.Equal(t, batch.TaskFailed, controller.views["b1"].Tasks[1].Status)

	// Ordered steps, all completed
	names := make([]string, len(record.Steps))
	for i, step := range record.Steps {
		names[i] = step.Name
		assert.Equal(t, StepCompleted, step.Status, "step %s", step.Name)
	}
	assert.Equal(t, []string{"cleanup_batch_state", "release_resources", "reset_ui", "health_check", "self_repair"}, names)

	// UI reset notifications went out
	assert.Equal(t, []string{"b1"}, sink.uiResets)
	assert.Equal(t, []string{"b1"}, sink.progressResets)
	assert.Equal(t, []string{"b1"}, sink.recoveryCompleted)
	assert.Equal(t, []bool{true}, sink.recoverySuccess)

	// Health was checked and the system is fine
	assert.Equal(t, StatusHealthy, record.SystemState.Overall)
}

func TestSweepTerminal_EvictsOldFinishedBatches(t *testing.T) {
	clk := clock.NewFake(time.Now())
	controller := newFakeController()

	controller.views["old-done"] = &batch.View{ID: "old-done", Status: batch.StatusCompleted}
	controller.lastUpdated["old-done"] = clk.Now().Add(-2 * time.Hour)

	controller.views["fresh-done"] = &batch.View{ID: "fresh-done", Status: batch.StatusCompleted}
	controller.lastUpdated["fresh-done"] = clk.Now().Add(-10 * time.Minute)

	controller.views["live"] = staleView()
	controller.lastUpdated["live"] = clk.Now().Add(-2 * time.Hour)

	s := NewService(controller, &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), nil, nil, clk, nil)

	assert.Equal(t, 1, s.SweepTerminal(time.Hour))
	assert.Nil(t, controller.Result("old-done"), "aged-out finished batch was evicted")
	assert.NotNil(t, controller.Result("fresh-done"), "recently finished batch is retained")
	assert.NotNil(t, controller.Result("live"), "running batch is never evicted")
}

func TestSweepTerminal_DefaultRetention(t *testing.T) {
	clk := clock.NewFake(time.Now())
	controller := newFakeController()
	controller.views["b1"] = &batch.View{ID: "b1", Status: batch.StatusCancelled}
	controller.lastUpdated["b1"] = clk.Now().Add(-30 * time.Minute)

	s := NewService(controller, &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), nil, nil, clk, nil)

	assert.Zero(t, s.SweepTerminal(0), "inside the default one-hour retention")
	clk.Advance(time.Hour)
	assert.Equal(t, 1, s.SweepTerminal(0))
}

func TestHealthCheck_ComponentsAndWorstOf(t *testing.T) {
	s := NewService(newFakeController(), &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), nil, &uiSink{}, clock.NewFake(time.Now()), nil)

	report := s.HealthCheck(context.Background())

	names := make(map[string]ComponentStatus, len(report.Components))
	for _, component := range report.Components {
		names[component.Component] = component.Status
	}
	assert.Contains(t, names, "database")
	assert.Contains(t, names, "memory")
	assert.Contains(t, names, "disk")
	assert.Contains(t, names, "processor")
	assert.Contains(t, names, "notification")

	// No pinger configured: database is Unknown, which dominates Healthy
	assert.Equal(t, StatusUnknown, names["database"])
	assert.Equal(t, StatusUnknown, report.Overall)
}

func TestHealthCheck_WithPinger(t *testing.T) {
	s := NewService(newFakeController(), &fakeCancels{requested: map[string]bool{}}, partial.NewMemoryRepository(), pingerFunc(func(ctx context.Context) error { return nil }), &uiSink{}, clock.NewFake(time.Now()), nil)

	report := s.HealthCheck(context.Background())
	assert.Equal(t, StatusHealthy, report.Overall)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
