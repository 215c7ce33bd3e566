package saga

import (
	"errors"
	"fmt"
)

// ErrStepTimeout marks an attempt abandoned at its per-step timeout. The
// abandoned action may still be running, so such failures are never retried.
var ErrStepTimeout = errors.New("step timed out")

// StepError identifies the required step that aborted a run.
type StepError struct {
	StepID   string
	StepName string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempt(s): %v", e.StepID, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
