package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// EventSerializer encodes events as JSON and decodes them back into their concrete types.
// Both the journal entry event store and the outbox decode through it.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// Register makes eventType decodable as *E
func Register[E any, PE interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = func() shared.DomainEvent { return PE(new(E)) }
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data as eventType. It fails for unregistered types, for payloads
// written with a newer schema, and for payloads that name a different type.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	if got := event.EventType(); got != "" && got != eventType {
		return nil, fmt.Errorf("payload is a %s event, expected %s", got, eventType)
	}
	if v, ok := event.(shared.VersionedEvent); ok && v.SchemaVersion() > shared.CurrentSchemaVersion {
		return nil, fmt.Errorf("%s event has unsupported schema version %d", eventType, v.SchemaVersion())
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in lexical order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
