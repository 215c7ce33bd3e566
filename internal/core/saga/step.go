package saga

import (
	"BackOffice/internal/core/domain"
	"context"
	"sync"
	"time"
)

// Guard decides whether a step's action runs. Returning false skips the step.
type Guard func(scope *Scope) bool

// Action performs a step's work. It must honor ctx cancellation.
type Action func(ctx context.Context, scope *Scope) error

// Step is shared by data-driven workflows and hand-coded processes.
type Step struct {
	ID   string
	Name string
	// EventType, when set, is published on the bus after the guard passes and
	// before the action runs.
	EventType     string
	AggregateType domain.AggregateType
	Guard         Guard
	Action        Action
	// Required steps abort the run on failure; optional ones are recorded and skipped past.
	Required bool
	// Timeout bounds each attempt of the action. Zero means no per-step bound.
	Timeout time.Duration
}

// Scope is the scratch space shared by the steps of one run.
type Scope struct {
	RunID         string
	RunName       string
	Kind          domain.RunKind
	CorrelationID string
	AggregateID   string
	AggregateType domain.AggregateType
	Payload       domain.Payload

	mu      sync.Mutex
	data    map[string]any
	effects []string
}

// NewScope creates a scope for a run.
func NewScope(runID, runName string, kind domain.RunKind, payload domain.Payload) *Scope {
	if payload == nil {
		payload = domain.Payload{}
	}
	return &Scope{
		RunID:   runID,
		RunName: runName,
		Kind:    kind,
		Payload: payload,
		data:    make(map[string]any),
	}
}

// Set stores a value for later steps.
func (s *Scope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get reads a value written by an earlier step.
func (s *Scope) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// GetString reads a string value, or def.
func (s *Scope) GetString(key, def string) string {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

// Data returns a copy of the scratch space.
func (s *Scope) Data() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// RecordEffect notes a side effect that is known to have been applied.
func (s *Scope) RecordEffect(effect string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = append(s.effects, effect)
}

// Effects returns the applied side effects in order.
func (s *Scope) Effects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.effects...)
}
