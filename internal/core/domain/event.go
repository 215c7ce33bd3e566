package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateType names the kind of entity an event is about.
type AggregateType string

const (
	AggregateSportEvent   AggregateType = "SportEvent"
	AggregateBet          AggregateType = "Bet"
	AggregateAgentAccount AggregateType = "AgentAccount"
	AggregateMessage      AggregateType = "Message"
	AggregateCustomer     AggregateType = "Customer"
	AggregateAgent        AggregateType = "Agent"
)

// Valid reports whether t is one of the known aggregate types.
func (t AggregateType) Valid() bool {
	switch t {
	case AggregateSportEvent, AggregateBet, AggregateAgentAccount,
		AggregateMessage, AggregateCustomer, AggregateAgent:
		return true
	}
	return false
}

// Metadata travels with every internal event.
type Metadata struct {
	CorrelationID   string    `json:"correlationId"`
	CausationID     string    `json:"causationId,omitempty"`
	Source          string    `json:"source,omitempty"`
	EventID         string    `json:"eventId,omitempty"`
	ExternalEventID string    `json:"externalEventId,omitempty"`
	IdempotencyKey  string    `json:"idempotencyKey,omitempty"`
	WorkflowID      string    `json:"workflowId,omitempty"`
	ProcessID       string    `json:"processId,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Event is the unit of communication on the bus. Treat it as immutable once published;
// handlers that need to change the payload must Clone it first.
type Event struct {
	Type          string        `json:"type"`
	AggregateID   string        `json:"aggregateId"`
	AggregateType AggregateType `json:"aggregateType"`
	Payload       Payload       `json:"payload"`
	Metadata      Metadata      `json:"metadata"`
}

// NewEvent builds an event with a fresh correlation id.
func NewEvent(eventType, aggregateID string, aggregateType AggregateType, payload Payload) Event {
	if payload == nil {
		payload = Payload{}
	}
	return Event{
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Payload:       payload,
		Metadata: Metadata{
			CorrelationID: uuid.NewString(),
			OccurredAt:    time.Now().UTC(),
		},
	}
}

// CausedBy links e to the event that produced it, keeping the correlation chain.
func (e Event) CausedBy(parent Event) Event {
	e.Metadata.CorrelationID = parent.Metadata.CorrelationID
	e.Metadata.CausationID = parent.Metadata.EventID
	if e.Metadata.CausationID == "" {
		e.Metadata.CausationID = parent.Metadata.CorrelationID
	}
	return e
}

// ExternalEvent is received from a system outside our bounded contexts.
type ExternalEvent struct {
	EventType string    `json:"eventType"`
	EventID   string    `json:"eventId"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}
