package domain

import "time"

// WorkflowContext is the state of one workflow instance. It is owned by the
// workflow engine; callers only ever receive copies.
type WorkflowContext struct {
	WorkflowID     string         `json:"workflowId"`
	WorkflowName   string         `json:"workflowName"`
	TriggerEvent   string         `json:"triggerEvent"`
	StartTime      time.Time      `json:"startTime"`
	CurrentStep    int            `json:"currentStep"`
	CompletedSteps []string       `json:"completedSteps"`
	FailedSteps    []string       `json:"failedSteps"`
	Steps          []StepRecord   `json:"steps"`
	Data           map[string]any `json:"data"`
	Error          string         `json:"error,omitempty"`
}

// Finished reports whether the instance recorded any completed or failed step.
func (w *WorkflowContext) Finished() bool {
	return len(w.CompletedSteps) > 0 || len(w.FailedSteps) > 0
}

// Failed reports whether any step failed.
func (w *WorkflowContext) Failed() bool {
	return len(w.FailedSteps) > 0
}

// Copy returns a deep-enough copy for handing out of the registry.
func (w *WorkflowContext) Copy() *WorkflowContext {
	out := *w
	out.CompletedSteps = append([]string(nil), w.CompletedSteps...)
	out.FailedSteps = append([]string(nil), w.FailedSteps...)
	out.Steps = append([]StepRecord(nil), w.Steps...)
	out.Data = make(map[string]any, len(w.Data))
	for k, v := range w.Data {
		out.Data[k] = v
	}
	return &out
}
