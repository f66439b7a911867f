// Package batch defines the core data model for SummaryHub: batches,
// segment tasks, progress snapshots, and cancellation requests. All
// snapshot types are value objects; the owning orchestrator goroutine is
// the only writer of a Batch and its tasks.
package batch

import "time"

// Status represents the lifecycle state of a batch
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true for states a batch can never leave
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Stage represents a named phase of a batch's lifecycle used for
// progress weighting. Merging is visible in progress snapshots but is
// not a batch Status.
type Stage string

const (
	StageInitializing    Stage = "initializing"
	StageSegmenting      Stage = "segmenting"
	StageBatchProcessing Stage = "batch_processing"
	StageMerging         Stage = "merging"
	StageFinalizing      Stage = "finalizing"
)

// Batch is one end-to-end summarization job tracked by the orchestrator
type Batch struct {
	ID               string         `json:"id"`
	Owner            string         `json:"owner"`
	OriginalText     string         `json:"original_text"`
	Tasks            []*SegmentTask `json:"tasks"`
	Status           Status         `json:"status"`
	ConcurrencyLimit int            `json:"concurrency_limit"`
	FinalSummary     string         `json:"final_summary,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Stats            Stats          `json:"stats"`
}

// Stats carries aggregate counters for a batch
type Stats struct {
	TotalSegments     int           `json:"total_segments"`
	CompletedSegments int           `json:"completed_segments"`
	FailedSegments    int           `json:"failed_segments"`
	TotalRetries      int           `json:"total_retries"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// CountTasks recomputes the completed/failed counters from the task list
func (b *Batch) CountTasks() (completed, failed int) {
	for _, task := range b.Tasks {
		switch task.Status {
		case TaskCompleted:
			completed++
		case TaskFailed:
			failed++
		}
	}
	return completed, failed
}

// AllTasksTerminal returns true when every task is Completed or Failed
func (b *Batch) AllTasksTerminal() bool {
	completed, failed := b.CountTasks()
	return completed+failed == len(b.Tasks)
}

// View is an immutable projection of a Batch for callers outside the
// orchestrator goroutine
type View struct {
	ID               string          `json:"id"`
	Owner            string          `json:"owner"`
	Status           Status          `json:"status"`
	ConcurrencyLimit int             `json:"concurrency_limit"`
	FinalSummary     string          `json:"final_summary,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Stats            Stats           `json:"stats"`
	Tasks            []SegmentStatus `json:"tasks"`
}

// Snapshot produces a View from the batch's current state
func (b *Batch) Snapshot() View {
	tasks := make([]SegmentStatus, len(b.Tasks))
	for i, task := range b.Tasks {
		tasks[i] = task.Snapshot()
	}

	completed, failed := b.CountTasks()
	stats := b.Stats
	stats.TotalSegments = len(b.Tasks)
	stats.CompletedSegments = completed
	stats.FailedSegments = failed

	var completedAt *time.Time
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		completedAt = &t
	}

	return View{
		ID:               b.ID,
		Owner:            b.Owner,
		Status:           b.Status,
		ConcurrencyLimit: b.ConcurrencyLimit,
		FinalSummary:     b.FinalSummary,
		StartedAt:        b.StartedAt,
		CompletedAt:      completedAt,
		Stats:            stats,
		Tasks:            tasks,
	}
}
