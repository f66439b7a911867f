package batch

import "time"

// TaskStatus represents the lifecycle state of one segment task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskRetrying   TaskStatus = "retrying"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal returns true for states a task can never leave
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Segment is one ordered slice of the original text
type Segment struct {
	Index       int    `json:"index"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	CharCount   int    `json:"char_count"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Type        string `json:"type"` // "paragraph", "sentence_group", "forced", "llm"
}

// SegmentTask is the per-segment unit of work inside a batch
type SegmentTask struct {
	Index       int           `json:"index"`
	Segment     Segment       `json:"segment"`
	Status      TaskStatus    `json:"status"`
	Summary     string        `json:"summary,omitempty"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// NewSegmentTask creates a pending task for a segment
func NewSegmentTask(seg Segment) *SegmentTask {
	return &SegmentTask{
		Index:   seg.Index,
		Segment: seg,
		Status:  TaskPending,
	}
}

// SegmentStatus is the immutable snapshot of a SegmentTask pushed to
// the progress calculator and to subscribers
type SegmentStatus struct {
	Index       int           `json:"index"`
	Title       string        `json:"title,omitempty"`
	CharCount   int           `json:"char_count"`
	Status      TaskStatus    `json:"status"`
	Summary     string        `json:"summary,omitempty"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Snapshot produces a SegmentStatus value from the task's current state
func (t *SegmentTask) Snapshot() SegmentStatus {
	var startedAt, completedAt *time.Time
	if t.StartedAt != nil {
		ts := *t.StartedAt
		startedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		completedAt = &ts
	}

	return SegmentStatus{
		Index:       t.Index,
		Title:       t.Segment.Title,
		CharCount:   t.Segment.CharCount,
		Status:      t.Status,
		Summary:     t.Summary,
		RetryCount:  t.RetryCount,
		LastError:   t.LastError,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    t.Duration,
	}
}
