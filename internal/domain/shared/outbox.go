package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry.
//
//	PENDING -> PROCESSING -> SENT
//	               |
//	               +-> FAILED -> PROCESSING ...
//	               +-> DEAD -> PENDING (manual retry)
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	// MaxBackoff caps the delay between two delivery attempts
	MaxBackoff = 5 * time.Minute
)

// outboxNow is the clock used for entry timestamps
var outboxNow = func() time.Time { return time.Now().UTC() }

// OutboxEntry is a serialized domain event waiting to be delivered to the bus
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := outboxNow()
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithMaxRetries overrides the delivery budget; values below 1 are ignored
func (e *OutboxEntry) WithMaxRetries(n int) *OutboxEntry {
	if n > 0 {
		e.MaxRetries = n
	}
	return e
}

func (e *OutboxEntry) IsDead() bool { return e.Status == OutboxStatusDead }

func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// MarkProcessing claims a pending or failed entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return NewStateError("outbox entry %s is %s, only PENDING or FAILED entries can be claimed", e.ID, e.Status)
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = outboxNow()
	return nil
}

func (e *OutboxEntry) MarkSent() {
	now := outboxNow()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a failed attempt. Once the budget is spent the entry is
// dead, otherwise it is scheduled again after Backoff(RetryCount).
func (e *OutboxEntry) MarkFailed(reason string) {
	now := outboxNow()
	e.RetryCount++
	e.LastError = reason
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	next := now.Add(Backoff(e.RetryCount))
	e.Status = OutboxStatusFailed
	e.NextRetryAt = &next
}

// ResetForRetry gives a dead entry a fresh budget and queues it again
func (e *OutboxEntry) ResetForRetry() error {
	if !e.IsDead() {
		return NewStateError("outbox entry %s is %s, only DEAD entries can be retried", e.ID, e.Status)
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = outboxNow()
	return nil
}

// Backoff returns the delay after the given failed attempt: 1s, 2s, 4s and so
// on, capped at MaxBackoff.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 20 {
		return MaxBackoff
	}
	return min(DefaultBaseBackoff<<(attempt-1), MaxBackoff)
}

// OutboxRepository persists outbox entries for the processor and the admin API
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns FAILED entries whose NextRetryAt is before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims the given entries atomically and returns those it claimed
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
	// ReleaseStale returns entries stuck in PROCESSING since before the given
	// time to FAILED so they are picked up again
	ReleaseStale(ctx context.Context, before time.Time) (int64, error)
}
