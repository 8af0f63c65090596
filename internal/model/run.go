package model

import "time"

// RunStatus represents the lifecycle state of a benchmark run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether no further work is expected for the run.
// A run stuck in running after a crash is resumable, not terminal.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TriggerType records what started a run.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// Run is one full execution attempt over all active queries and providers.
type Run struct {
	ID             int64       `json:"id"`
	RunDate        string      `json:"run_date"`
	TriggerType    TriggerType `json:"trigger_type"`
	Status         RunStatus   `json:"status"`
	TotalItems     int         `json:"total_items"`
	CompletedItems int         `json:"completed_items"`
	StartedAt      time.Time   `json:"started_at"`
	LastProgressAt time.Time   `json:"last_progress_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
}

// NewRun holds the attributes needed to open a run record.
type NewRun struct {
	RunDate     string
	TriggerType TriggerType
	TotalItems  int
}

// Progress returns completed/total as a fraction in [0, 1].
func (r Run) Progress() float64 {
	if r.TotalItems <= 0 {
		return 0
	}
	p := float64(r.CompletedItems) / float64(r.TotalItems)
	if p > 1 {
		return 1
	}
	return p
}
