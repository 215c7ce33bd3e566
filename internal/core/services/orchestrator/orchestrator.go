package orchestrator

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"BackOffice/internal/core/saga"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Process names.
const (
	ProcessCustomerDeposit    = "customer_deposit"
	ProcessAgentBetPlacement  = "agent_bet_placement"
	ProcessCustomerOnboarding = "customer_onboarding"
)

// ProcessError is returned when a process fails. Result has the same shape as a
// successful run, populated with the failing step and error.
type ProcessError struct {
	Result *domain.BusinessProcessResult
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s (%s) failed at step %s: %v",
		e.Result.ProcessName, e.Result.ProcessID, e.Result.FailedStep, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Deps are the collaborators the processes call.
type Deps struct {
	Bus         ports.EventBus
	Balance     ports.BalanceService
	Collections ports.CollectionsService
	Gateway     ports.BetGateway
	Runner      *saga.Runner
}

// Options holds process thresholds.
type Options struct {
	// RiskStakeThreshold flags stakes above it. The flag never blocks a bet.
	RiskStakeThreshold decimal.Decimal
}

// Orchestrator runs the hand-coded business processes.
type Orchestrator struct {
	deps     Deps
	opts     Options
	log      zerolog.Logger
	validate *validator.Validate

	mu        sync.RWMutex
	processes map[string]*domain.BusinessProcessResult
}

// New creates an orchestrator.
func New(deps Deps, opts Options, baseLogger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		opts:      opts,
		log:       baseLogger.With().Str("component", "domain_orchestrator").Logger(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		processes: make(map[string]*domain.BusinessProcessResult),
	}
}

// run executes steps as one process and stores the result in the registry.
func (o *Orchestrator) run(ctx context.Context, name string, payload domain.Payload, aggID string, aggType domain.AggregateType, steps []saga.Step) (*domain.BusinessProcessResult, error) {
	id := uuid.NewString()
	log := o.log.With().Str("process", name).Str("process_id", id).Logger()

	// 1. Register the result
	result := &domain.BusinessProcessResult{
		ProcessID:      id,
		ProcessName:    name,
		StartedAt:      time.Now().UTC(),
		Steps:          make([]domain.StepRecord, len(steps)),
		Result:         map[string]any{},
		AppliedEffects: []string{},
	}
	for i, s := range steps {
		result.Steps[i] = domain.StepRecord{ID: s.ID, Name: s.Name, Required: s.Required, Status: domain.StepPending}
	}
	o.mu.Lock()
	o.processes[id] = result
	o.mu.Unlock()

	scope := saga.NewScope(id, name, domain.RunKindProcess, payload)
	scope.CorrelationID = id
	scope.AggregateID = aggID
	scope.AggregateType = aggType

	log.Info().Msg("Process started")

	// 2. Run with no retries; money movement is never repeated automatically.
	_, err := o.deps.Runner.Run(ctx, saga.RunSpec{
		Steps:         steps,
		Scope:         scope,
		RetryAttempts: 0,
		OnTransition: func(index int, rec domain.StepRecord) {
			o.mu.Lock()
			result.Steps[index] = rec
			o.mu.Unlock()
		},
	})

	// 3. Finalize
	o.mu.Lock()
	result.Result = scope.Data()
	result.AppliedEffects = scope.Effects()
	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	var cause error
	if err != nil {
		cause = err
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			result.FailedStep = stepErr.StepID
			cause = stepErr.Err
		}
		result.Error = cause.Error()
		result.ErrorCode = domain.CodeOf(cause)
	}
	snapshot := result.Copy()
	o.mu.Unlock()

	if err != nil {
		log.Error().Err(cause).
			Str("failed_step", snapshot.FailedStep).
			Strs("applied_effects", snapshot.AppliedEffects).
			Msg("Process failed")
		return nil, &ProcessError{Result: snapshot, Err: cause}
	}

	log.Info().Dur("duration", snapshot.Duration).Msg("Process completed")
	return snapshot, nil
}

// publish emits an event correlated with the running process.
func (o *Orchestrator) publish(ctx context.Context, s *saga.Scope, eventType, aggID string, aggType domain.AggregateType, payload domain.Payload) error {
	evt := domain.NewEvent(eventType, aggID, aggType, payload)
	evt.Metadata.ProcessID = s.RunID
	if s.CorrelationID != "" {
		evt.Metadata.CorrelationID = s.CorrelationID
	}
	if err := o.deps.Bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// GetProcessStatus returns a copy of the process result, or nil once it is gone.
func (o *Orchestrator) GetProcessStatus(id string) *domain.BusinessProcessResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.processes[id]
	if !ok {
		return nil
	}
	return r.Copy()
}

// ActiveProcesses returns copies of every registered process, oldest first.
func (o *Orchestrator) ActiveProcesses() []*domain.BusinessProcessResult {
	o.mu.RLock()
	out := make([]*domain.BusinessProcessResult, 0, len(o.processes))
	for _, r := range o.processes {
		out = append(out, r.Copy())
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// CleanupCompletedProcesses evicts finished processes started at least maxAge ago.
func (o *Orchestrator) CleanupCompletedProcesses(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	o.mu.Lock()
	removed := 0
	for id, r := range o.processes {
		if r.Done() && !r.StartedAt.After(cutoff) {
			delete(o.processes, id)
			removed++
		}
	}
	o.mu.Unlock()

	if removed > 0 {
		o.log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Cleaned up processes")
	}
	return removed
}
