// Package recovery scans for abandoned batches, cleans up their state,
// resets subscriber UI, and runs component health checks.
package recovery

import (
	"time"
)

// StepStatus is the lifecycle state of one recovery step
type StepStatus string

const (
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Step is one ordered action inside a recovery run
type Step struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Message    string     `json:"message,omitempty"`
}

// Record is the persisted account of one recovery run
type Record struct {
	ID          string       `json:"id"`
	BatchID     string       `json:"batch_id"`
	Reason      string       `json:"reason"`
	Steps       []Step       `json:"steps"`
	SystemState HealthReport `json:"system_state"`
	Success     bool         `json:"success"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// ComponentStatus grades one health-checked component
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusWarning   ComponentStatus = "warning"
	StatusUnhealthy ComponentStatus = "unhealthy"
	StatusCritical  ComponentStatus = "critical"
	StatusUnknown   ComponentStatus = "unknown"
)

// severity orders component statuses from best to worst
func (s ComponentStatus) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusUnknown:
		return 2
	case StatusUnhealthy:
		return 3
	case StatusCritical:
		return 4
	default:
		return 2
	}
}

// ComponentHealth is one component's check result
type ComponentHealth struct {
	Component string                 `json:"component"`
	Status    ComponentStatus        `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthReport aggregates all component checks; Overall is the worst
// individual status
type HealthReport struct {
	Overall    ComponentStatus   `json:"overall"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}
