package workflow

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Definition is a static, declarative workflow template.
type Definition struct {
	Name         string
	TriggerEvent string
	Steps        []saga.Step
	// Timeout bounds a whole instance. Zero means unbounded.
	Timeout time.Duration
	// RetryAttempts is the number of extra attempts a failing required step gets.
	RetryAttempts int
}

// Stats summarizes the engine registry.
type Stats struct {
	TotalDefined int `json:"totalDefined"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
}

// Engine runs workflow instances when their trigger events are published.
type Engine struct {
	bus    ports.EventBus
	runner *saga.Runner
	log    zerolog.Logger

	defMu       sync.RWMutex
	definitions map[string]Definition
	order       []string
	triggers    map[string]bool

	instMu    sync.RWMutex
	instances map[string]*domain.WorkflowContext
}

// NewEngine creates an engine that subscribes triggers on bus.
func NewEngine(bus ports.EventBus, runner *saga.Runner, baseLogger *zerolog.Logger) *Engine {
	return &Engine{
		bus:         bus,
		runner:      runner,
		log:         baseLogger.With().Str("component", "workflow_engine").Logger(),
		definitions: make(map[string]Definition),
		triggers:    make(map[string]bool),
		instances:   make(map[string]*domain.WorkflowContext),
	}
}

// Register validates def and subscribes its trigger event. Registering a name
// twice replaces the earlier definition.
func (e *Engine) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	e.defMu.Lock()
	if _, exists := e.definitions[def.Name]; !exists {
		e.order = append(e.order, def.Name)
	}
	e.definitions[def.Name] = def
	subscribe := !e.triggers[def.TriggerEvent]
	e.triggers[def.TriggerEvent] = true
	e.defMu.Unlock()

	if subscribe {
		e.bus.Subscribe(def.TriggerEvent, e.onTrigger)
	}

	e.log.Info().
		Str("workflow", def.Name).
		Str("trigger", def.TriggerEvent).
		Int("steps", len(def.Steps)).
		Msg("Workflow registered")
	return nil
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return domain.NewValidationError("workflow name is required")
	}
	if def.TriggerEvent == "" {
		return domain.NewValidationError("workflow %s has no trigger event", def.Name)
	}
	if len(def.Steps) == 0 {
		return domain.NewValidationError("workflow %s has no steps", def.Name)
	}
	seen := make(map[string]bool, len(def.Steps))
	for i, s := range def.Steps {
		if s.ID == "" {
			return domain.NewValidationError("workflow %s step %d has no id", def.Name, i)
		}
		if seen[s.ID] {
			return domain.NewValidationError("workflow %s has duplicate step id %q", def.Name, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Definitions returns the registered definitions in registration order.
func (e *Engine) Definitions() []Definition {
	e.defMu.RLock()
	defer e.defMu.RUnlock()
	out := make([]Definition, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.definitions[name])
	}
	return out
}

// onTrigger starts every workflow bound to the event type. Failures are recorded
// in the instance and logged; they never propagate to the publisher.
func (e *Engine) onTrigger(ctx context.Context, evt domain.Event) error {
	e.defMu.RLock()
	var matching []Definition
	for _, name := range e.order {
		if def := e.definitions[name]; def.TriggerEvent == evt.Type {
			matching = append(matching, def)
		}
	}
	e.defMu.RUnlock()

	for _, def := range matching {
		trigger := evt
		id, err := e.start(ctx, def, evt.Payload, &trigger)
		if err != nil {
			e.log.Error().Err(err).
				Str("workflow", def.Name).
				Str("workflow_id", id).
				Str("trigger", evt.Type).
				Msg("Triggered workflow failed")
		}
	}
	return nil
}

// StartWorkflow runs the named workflow with payload. The id is returned even
// when a required step fails; the error then describes that step.
func (e *Engine) StartWorkflow(ctx context.Context, name string, payload domain.Payload) (string, error) {
	e.defMu.RLock()
	def, ok := e.definitions[name]
	e.defMu.RUnlock()
	if !ok {
		return "", domain.NewDomainError(domain.CodeWorkflowNotFound, "workflow %q is not registered", name)
	}
	return e.start(ctx, def, payload, nil)
}

// TriggerWorkflow starts a workflow outside the event-trigger path.
func (e *Engine) TriggerWorkflow(ctx context.Context, name string, payload domain.Payload) (string, error) {
	return e.StartWorkflow(ctx, name, payload)
}

func (e *Engine) start(ctx context.Context, def Definition, payload domain.Payload, trigger *domain.Event) (string, error) {
	id := uuid.NewString()
	log := e.log.With().Str("workflow", def.Name).Str("workflow_id", id).Logger()

	// 1. Register the instance
	wc := &domain.WorkflowContext{
		WorkflowID:     id,
		WorkflowName:   def.Name,
		TriggerEvent:   def.TriggerEvent,
		StartTime:      time.Now().UTC(),
		CompletedSteps: []string{},
		FailedSteps:    []string{},
		Steps:          make([]domain.StepRecord, len(def.Steps)),
		Data:           map[string]any{},
	}
	for i, s := range def.Steps {
		wc.Steps[i] = domain.StepRecord{ID: s.ID, Name: s.Name, Required: s.Required, Status: domain.StepPending}
	}
	e.instMu.Lock()
	e.instances[id] = wc
	e.instMu.Unlock()

	// 2. Build the scope
	scope := saga.NewScope(id, def.Name, domain.RunKindWorkflow, payload.Clone())
	if trigger != nil {
		scope.CorrelationID = trigger.Metadata.CorrelationID
		scope.AggregateID = trigger.AggregateID
		scope.AggregateType = trigger.AggregateType
	}

	log.Info().Msg("Workflow started")

	// 3. Run
	_, err := e.runner.Run(ctx, saga.RunSpec{
		Steps:         def.Steps,
		Scope:         scope,
		RetryAttempts: def.RetryAttempts,
		Timeout:       def.Timeout,
		OnTransition: func(index int, rec domain.StepRecord) {
			e.recordTransition(id, index, rec, scope)
		},
	})

	e.instMu.Lock()
	wc.Data = scope.Data()
	if err != nil {
		wc.Error = err.Error()
	}
	e.instMu.Unlock()

	if err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			log.Warn().Str("failed_step", stepErr.StepID).Err(stepErr.Err).Msg("Workflow aborted")
		}
		return id, fmt.Errorf("workflow %s (%s): %w", def.Name, id, err)
	}

	log.Info().Msg("Workflow finished")
	return id, nil
}

func (e *Engine) recordTransition(id string, index int, rec domain.StepRecord, scope *saga.Scope) {
	e.instMu.Lock()
	defer e.instMu.Unlock()

	wc, ok := e.instances[id]
	if !ok {
		return
	}
	wc.Steps[index] = rec
	wc.CurrentStep = index
	switch rec.Status {
	case domain.StepCompleted:
		wc.CompletedSteps = append(wc.CompletedSteps, rec.ID)
	case domain.StepFailed:
		wc.FailedSteps = append(wc.FailedSteps, rec.ID)
	}
	wc.Data = scope.Data()
}

// GetWorkflowStatus returns a copy of the instance, or nil once it is gone.
func (e *Engine) GetWorkflowStatus(id string) *domain.WorkflowContext {
	e.instMu.RLock()
	defer e.instMu.RUnlock()
	wc, ok := e.instances[id]
	if !ok {
		return nil
	}
	return wc.Copy()
}

// ActiveWorkflows returns copies of every registered instance, oldest first.
func (e *Engine) ActiveWorkflows() []*domain.WorkflowContext {
	e.instMu.RLock()
	out := make([]*domain.WorkflowContext, 0, len(e.instances))
	for _, wc := range e.instances {
		out = append(out, wc.Copy())
	}
	e.instMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// CleanupCompletedWorkflows evicts instances at least maxAge old that recorded a
// completed or failed step. It returns the number removed.
func (e *Engine) CleanupCompletedWorkflows(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	e.instMu.Lock()
	removed := 0
	for id, wc := range e.instances {
		if wc.Finished() && !wc.StartTime.After(cutoff) {
			delete(e.instances, id)
			removed++
		}
	}
	e.instMu.Unlock()

	if removed > 0 {
		e.log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Cleaned up workflow instances")
	}
	return removed
}

// GetStats reports definition and instance counts.
func (e *Engine) GetStats() Stats {
	e.defMu.RLock()
	stats := Stats{TotalDefined: len(e.definitions)}
	e.defMu.RUnlock()

	e.instMu.RLock()
	defer e.instMu.RUnlock()
	stats.Active = len(e.instances)
	for _, wc := range e.instances {
		switch {
		case wc.Failed():
			stats.Failed++
		case len(wc.CompletedSteps) > 0:
			stats.Completed++
		}
	}
	return stats
}
