package shared

import (
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is the payload layout every ledger event is written with
const CurrentSchemaVersion = 1

// DomainEvent is a fact raised by an aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// VersionedEvent is implemented by events that record their payload schema
type VersionedEvent interface {
	DomainEvent
	SchemaVersion() int
}

// BaseDomainEvent is embedded by concrete events and serialized inline with their payload
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     uuid.UUID `json:"aggregate_id"`
	AggType   string    `json:"aggregate_type"`
	Version   int       `json:"schema_version,omitempty"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggType }

// SchemaVersion treats payloads written without a version as version 1
func (e *BaseDomainEvent) SchemaVersion() int {
	return max(e.Version, 1)
}

// NewBaseDomainEvent stamps a new event with the current UTC time
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID) BaseDomainEvent {
	return NewBaseDomainEventAt(eventType, aggType, aggID, time.Now().UTC())
}

// NewBaseDomainEventAt stamps a new event with at, so several events raised by one
// operation can share a timestamp
func NewBaseDomainEventAt(eventType, aggType string, aggID uuid.UUID, at time.Time) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		AggID:     aggID,
		AggType:   aggType,
		Version:   CurrentSchemaVersion,
	}
}
