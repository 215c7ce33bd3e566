package memory

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"sync"
)

// stepJournal is the journal used when no database is configured.
type stepJournal struct {
	mu    sync.RWMutex
	byRun map[string][]domain.StepTransition
}

var _ ports.StepJournal = (*stepJournal)(nil)

// NewStepJournal creates an in-memory step journal.
func NewStepJournal() ports.StepJournal {
	return &stepJournal{byRun: make(map[string][]domain.StepTransition)}
}

func (j *stepJournal) Append(ctx context.Context, entry domain.StepTransition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.byRun[entry.RunID] = append(j.byRun[entry.RunID], entry)
	return nil
}

func (j *stepJournal) ListByRun(ctx context.Context, runID string) ([]domain.StepTransition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]domain.StepTransition{}, j.byRun[runID]...), nil
}
