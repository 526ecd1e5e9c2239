package event

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher turns domain events into outbox rows written by the caller's transaction.
// Repositories hold it as a shared.OutboxEventSaver.
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)

func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
}

// WithMaxRetries sets the delivery budget stamped on new entries; n < 1 keeps the default.
func (p *OutboxPublisher) WithMaxRetries(n int) *OutboxPublisher {
	if n > 0 {
		p.maxRetries = n
	}
	return p
}

// PublishWithTx stores events through tx so they commit or roll back with the aggregate.
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	entries, err := p.entries(events)
	if err != nil || len(entries) == 0 {
		return err
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

func (p *OutboxPublisher) SaveEvents(ctx context.Context, tx any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	db, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("txProvider must be a *gorm.DB, got %T", tx)
	}
	return p.PublishWithTx(ctx, db, events...)
}

func (p *OutboxPublisher) entries(events []shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	out := make([]*shared.OutboxEntry, 0, len(events))
	for _, evt := range events {
		payload, err := p.serializer.Serialize(evt)
		if err != nil {
			return nil, fmt.Errorf("outbox %s for %s: %w", evt.EventType(), evt.AggregateID(), err)
		}
		out = append(out, shared.NewOutboxEntry(evt, payload).WithMaxRetries(p.maxRetries))
	}
	return out, nil
}
