package mapper

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// idempotencyNamespace scopes the SHA-1 keys derived for mapped events. Changing it
// changes every key, so it is fixed.
var idempotencyNamespace = uuid.MustParse("6f1c2a4e-8b0d-4c53-9e57-0a1f3d2b7c11")

// MapperFunc converts one external event into internal events. It must be pure so
// that reprocessing is safe.
type MapperFunc func(ext domain.ExternalEvent) ([]domain.Event, error)

// Options configures the mapper.
type Options struct {
	// Production disables published-event introspection.
	Production bool
}

// BatchError records one failed external event of a batch.
type BatchError struct {
	EventID string `json:"eventId"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// BatchResult summarizes a batch. Individual failures never fail the batch.
type BatchResult struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}

// Mapper is the anti-corruption layer between external systems and the bus.
type Mapper struct {
	bus  ports.EventBus
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	mappings map[string]MapperFunc

	pubMu     sync.Mutex
	published []domain.Event
}

var _ ports.ExternalEventSink = (*Mapper)(nil)

// New creates a mapper publishing to bus.
func New(bus ports.EventBus, opts Options, baseLogger *zerolog.Logger) *Mapper {
	return &Mapper{
		bus:      bus,
		opts:     opts,
		log:      baseLogger.With().Str("component", "external_event_mapper").Logger(),
		mappings: make(map[string]MapperFunc),
	}
}

// IdempotencyKey derives the deterministic key for the index-th event of type
// internalType produced from externalEventID.
func IdempotencyKey(externalEventID, internalType string, index int) string {
	name := fmt.Sprintf("%s|%s|%d", externalEventID, internalType, index)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// RegisterMapping stores fn for externalType, replacing any previous mapping.
// fn is wrapped so that errors and panics surface as *domain.MappingError after
// being logged with the original payload.
func (m *Mapper) RegisterMapping(externalType string, fn MapperFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.mappings[externalType]; exists {
		m.log.Warn().Str("external_type", externalType).Msg("Replacing existing mapping")
	}
	m.mappings[externalType] = m.wrap(externalType, fn)
	m.log.Debug().Str("external_type", externalType).Msg("Registered external event mapping")
}

// HasMapping reports whether externalType is mapped.
func (m *Mapper) HasMapping(externalType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mappings[externalType]
	return ok
}

// RegisteredTypes lists mapped external types in lexical order.
func (m *Mapper) RegisteredTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]string, 0, len(m.mappings))
	for t := range m.mappings {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (m *Mapper) wrap(externalType string, fn MapperFunc) MapperFunc {
	return func(ext domain.ExternalEvent) (events []domain.Event, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("mapper panicked: %v", rec)
			}
			if err != nil {
				m.log.Error().Err(err).
					Str("external_type", externalType).
					Str("external_event_id", ext.EventID).
					Str("source", ext.Source).
					Interface("payload", ext.Payload).
					Msg("External event mapping failed")
				err = &domain.MappingError{ExternalType: externalType, EventID: ext.EventID, Err: err}
				events = nil
			}
		}()

		events, err = fn(ext)
		if err != nil {
			return nil, err
		}
		for i, e := range events {
			if e.Type == "" {
				return nil, fmt.Errorf("mapped event %d has no type", i)
			}
		}
		return events, nil
	}
}

// ProcessExternalEvent maps ext and publishes the results. Unmapped types are
// logged and ignored. With preserveOrder the events are published one after the
// other; without it they are published concurrently and relative order is lost.
// It returns the number of internal events published.
func (m *Mapper) ProcessExternalEvent(ctx context.Context, ext domain.ExternalEvent, preserveOrder bool) (int, error) {
	log := m.log.With().
		Str("external_type", ext.EventType).
		Str("external_event_id", ext.EventID).
		Logger()

	// 1. Look up the mapping
	m.mu.RLock()
	fn, ok := m.mappings[ext.EventType]
	m.mu.RUnlock()
	if !ok {
		log.Warn().Msg("No mapping registered for external event type, ignoring")
		return 0, nil
	}

	// 2. Map
	events, err := fn(ext)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		log.Debug().Msg("Mapping produced no internal events")
		return 0, nil
	}

	// 3. Enrich metadata with deterministic idempotency keys
	for i := range events {
		events[i] = enrich(events[i], ext, i)
	}

	// 4. Publish
	if preserveOrder {
		for i, e := range events {
			if err := m.bus.Publish(ctx, e); err != nil {
				log.Error().Err(err).Str("type", e.Type).Int("index", i).Msg("Failed to publish mapped event")
				return i, fmt.Errorf("publish %s for external event %s: %w", e.Type, ext.EventID, err)
			}
			m.record(e)
		}
	} else {
		// Every event is settled: a failed publish does not cancel its siblings.
		var (
			g         errgroup.Group
			mu        sync.Mutex
			errs      []error
			published int
		)
		for _, e := range events {
			g.Go(func() error {
				if err := m.bus.Publish(ctx, e); err != nil {
					log.Error().Err(err).Str("type", e.Type).Msg("Failed to publish mapped event")
					mu.Lock()
					errs = append(errs, fmt.Errorf("publish %s for external event %s: %w", e.Type, ext.EventID, err))
					mu.Unlock()
					return nil
				}
				m.record(e)
				mu.Lock()
				published++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		if len(errs) > 0 {
			return published, errors.Join(errs...)
		}
	}

	log.Info().Int("events", len(events)).Bool("ordered", preserveOrder).Msg("External event processed")
	return len(events), nil
}

func enrich(e domain.Event, ext domain.ExternalEvent, index int) domain.Event {
	key := IdempotencyKey(ext.EventID, e.Type, index)
	e.Metadata.EventID = key
	e.Metadata.IdempotencyKey = key
	e.Metadata.ExternalEventID = ext.EventID
	e.Metadata.Source = ext.Source
	e.Metadata.CausationID = ext.EventID
	if e.Metadata.CorrelationID == "" {
		e.Metadata.CorrelationID = ext.EventID
	}
	if e.Metadata.OccurredAt.IsZero() {
		e.Metadata.OccurredAt = ext.Timestamp
	}
	if e.Payload == nil {
		e.Payload = domain.Payload{}
	}
	return e
}

// ProcessExternalEventsBatch validates and processes every event. Sequential mode
// continues past failures; concurrent mode settles every event before partitioning.
func (m *Mapper) ProcessExternalEventsBatch(ctx context.Context, events []domain.ExternalEvent, preserveOrder bool) BatchResult {
	errs := make([]error, len(events))

	processOne := func(i int) {
		ext := events[i]
		if valid, violations := ValidateExternalEvent(ext); !valid {
			errs[i] = domain.NewValidationError("invalid external event: %v", violations)
			return
		}
		_, errs[i] = m.ProcessExternalEvent(ctx, ext, preserveOrder)
	}

	if preserveOrder {
		for i := range events {
			processOne(i)
		}
	} else {
		var g errgroup.Group
		for i := range events {
			g.Go(func() error {
				processOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := BatchResult{Errors: []BatchError{}}
	for i, err := range errs {
		if err == nil {
			result.Processed++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, BatchError{EventID: events[i].EventID, Err: err, Message: err.Error()})
	}

	m.log.Info().
		Int("total", len(events)).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Bool("ordered", preserveOrder).
		Msg("External event batch processed")
	return result
}

// maxFutureSkew bounds how far ahead of the local clock an external timestamp
// may be before it is treated as bogus.
const maxFutureSkew = 24 * time.Hour

// ValidateExternalEvent checks the structural shape of ext.
func ValidateExternalEvent(ext domain.ExternalEvent) (bool, []string) {
	var violations []string
	if ext.EventType == "" {
		violations = append(violations, "eventType must be a non-empty string")
	}
	if ext.EventID == "" {
		violations = append(violations, "eventId must be a non-empty string")
	}
	if ext.Source == "" {
		violations = append(violations, "source must be a non-empty string")
	}
	switch {
	case ext.Timestamp.IsZero():
		violations = append(violations, "timestamp must be a valid instant")
	case ext.Timestamp.After(time.Now().Add(maxFutureSkew)):
		violations = append(violations, fmt.Sprintf("timestamp must not be more than %s in the future", maxFutureSkew))
	}
	if ext.Payload == nil {
		violations = append(violations, "payload must be an object")
	}
	return len(violations) == 0, violations
}

// --- Testing-only introspection ---

func (m *Mapper) record(e domain.Event) {
	if m.opts.Production {
		return
	}
	m.pubMu.Lock()
	m.published = append(m.published, e)
	m.pubMu.Unlock()
}

// PublishedEvents returns every event published so far.
func (m *Mapper) PublishedEvents() ([]domain.Event, error) {
	return m.filterPublished(func(domain.Event) bool { return true })
}

// LastPublishedEvent returns the most recent published event.
func (m *Mapper) LastPublishedEvent() (*domain.Event, error) {
	events, err := m.PublishedEvents()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	last := events[len(events)-1]
	return &last, nil
}

// PublishedEventsByType filters published events by internal type.
func (m *Mapper) PublishedEventsByType(eventType string) ([]domain.Event, error) {
	return m.filterPublished(func(e domain.Event) bool { return e.Type == eventType })
}

// PublishedEventsByAggregate filters published events by aggregate.
func (m *Mapper) PublishedEventsByAggregate(aggType domain.AggregateType, aggID string) ([]domain.Event, error) {
	return m.filterPublished(func(e domain.Event) bool {
		return e.AggregateType == aggType && (aggID == "" || e.AggregateID == aggID)
	})
}

// ClearPublishedEvents forgets recorded events.
func (m *Mapper) ClearPublishedEvents() error {
	if m.opts.Production {
		return domain.ErrIntrospectionDisabled
	}
	m.pubMu.Lock()
	m.published = nil
	m.pubMu.Unlock()
	return nil
}

func (m *Mapper) filterPublished(keep func(domain.Event) bool) ([]domain.Event, error) {
	if m.opts.Production {
		return nil, domain.ErrIntrospectionDisabled
	}
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	out := []domain.Event{}
	for _, e := range m.published {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
