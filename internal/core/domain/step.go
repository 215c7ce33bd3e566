package domain

import "time"

// StepStatus tracks a single step through pending -> running -> completed|failed.
// A step whose guard returns false ends as skipped.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Terminal reports whether no further transition is expected.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// StepRecord is the observable state of one step within a run.
type StepRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Required    bool       `json:"required"`
	Status      StepStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	StartedAt   time.Time  `json:"startedAt,omitzero"`
	CompletedAt time.Time  `json:"completedAt,omitzero"`
}

// RunKind distinguishes data-driven workflows from hand-coded processes.
type RunKind string

const (
	RunKindWorkflow RunKind = "workflow"
	RunKindProcess  RunKind = "process"
)

// StepTransition is appended to the step journal on every status change.
type StepTransition struct {
	RunID      string     `json:"runId"`
	RunKind    RunKind    `json:"runKind"`
	RunName    string     `json:"runName"`
	StepID     string     `json:"stepId"`
	StepIndex  int        `json:"stepIndex"`
	Status     StepStatus `json:"status"`
	Attempt    int        `json:"attempt"`
	Error      string     `json:"error,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}
