package shared

import (
	"context"
	"time"
)

// EventHandler reacts to delivered events. EventTypes lists what it wants; nil means all.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus fans published events out to subscribed handlers
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver writes events to the outbox inside the caller's transaction, so they
// commit or roll back together with the aggregate change. tx is the open *gorm.DB.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}

// IdempotencyStore remembers which deliveries a handler has already applied.
// Keys are namespaced by the caller, e.g. "balance:<event id>".
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports false when it was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release drops a claim so a failed delivery can be retried.
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls duplicate suppression in event handlers
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps claims for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
