package domain

import "time"

// BusinessProcessResult is produced by every orchestrator process, on success and
// on failure alike.
type BusinessProcessResult struct {
	ProcessID   string         `json:"processId"`
	ProcessName string         `json:"processName"`
	StartedAt   time.Time      `json:"startedAt"`
	Steps       []StepRecord   `json:"steps"`
	Result      map[string]any `json:"result"`
	// AppliedEffects lists side effects known to have happened. Nothing is rolled
	// back when a later step fails.
	AppliedEffects []string      `json:"appliedEffects"`
	FailedStep     string        `json:"failedStep,omitempty"`
	Error          string        `json:"error,omitempty"`
	ErrorCode      ErrorCode     `json:"errorCode,omitempty"`
	Duration       time.Duration `json:"duration"`
	CompletedAt    time.Time     `json:"completedAt,omitzero"`
}

// Done reports whether the process reached a terminal state.
func (r *BusinessProcessResult) Done() bool {
	return !r.CompletedAt.IsZero()
}

// Step returns the record for id, if present.
func (r *BusinessProcessResult) Step(id string) (StepRecord, bool) {
	for _, s := range r.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepRecord{}, false
}

// Copy returns a copy safe to hand out of the registry.
func (r *BusinessProcessResult) Copy() *BusinessProcessResult {
	out := *r
	out.Steps = append([]StepRecord(nil), r.Steps...)
	out.AppliedEffects = append([]string(nil), r.AppliedEffects...)
	out.Result = make(map[string]any, len(r.Result))
	for k, v := range r.Result {
		out.Result[k] = v
	}
	return &out
}
