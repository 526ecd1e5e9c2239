package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type constants for JournalEntry
const (
	EventTypeJournalEntryCreated       = "JournalEntryCreated"
	EventTypeJournalEntryLineItemAdded = "JournalEntryLineItemAdded"
	EventTypeJournalEntryPosted        = "JournalEntryPosted"
)

// JournalEntryCreatedEvent is the first event of every journal entry stream
type JournalEntryCreatedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID     uuid.UUID            `json:"journal_entry_id"`
	JournalEntryNumber string               `json:"journal_entry_number"`
	PostingDate        time.Time            `json:"posting_date"`
	DocumentDate       time.Time            `json:"document_date"`
	Reference          string               `json:"reference"`
	Description        string               `json:"description"`
	Currency           valueobject.Currency `json:"currency"`
	CreatedBy          string               `json:"created_by"`
}

// NewJournalEntryCreatedEvent creates a new JournalEntryCreatedEvent
func NewJournalEntryCreatedEvent(je *JournalEntry) *JournalEntryCreatedEvent {
	return &JournalEntryCreatedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEventAt(EventTypeJournalEntryCreated, AggregateTypeJournalEntry, je.ID, je.CreatedAt),
		JournalEntryID:     je.ID,
		JournalEntryNumber: je.JournalEntryNumber,
		PostingDate:        je.PostingDate,
		DocumentDate:       je.DocumentDate,
		Reference:          je.Reference,
		Description:        je.Description,
		Currency:           je.Currency,
		CreatedBy:          je.CreatedBy,
	}
}

// EventType returns the event type name
func (e *JournalEntryCreatedEvent) EventType() string {
	return EventTypeJournalEntryCreated
}

// JournalEntryLineItemAddedEvent records one line item appended to an unposted entry
type JournalEntryLineItemAddedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID       uuid.UUID            `json:"journal_entry_id"`
	LineItemID           uuid.UUID            `json:"line_item_id"`
	AccountID            uuid.UUID            `json:"account_id"`
	AccountNumber        string               `json:"account_number"`
	DebitCreditIndicator DebitCreditIndicator `json:"debit_credit_indicator"`
	Amount               valueobject.Money    `json:"amount"`
	Description          string               `json:"description"`
}

// NewJournalEntryLineItemAddedEvent creates a new JournalEntryLineItemAddedEvent
func NewJournalEntryLineItemAddedEvent(je *JournalEntry, item *JournalEntryLineItem) *JournalEntryLineItemAddedEvent {
	return &JournalEntryLineItemAddedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEventAt(EventTypeJournalEntryLineItemAdded, AggregateTypeJournalEntry, je.ID, item.CreatedAt),
		JournalEntryID:       je.ID,
		LineItemID:           item.ID,
		AccountID:            item.AccountID,
		AccountNumber:        item.AccountNumber,
		DebitCreditIndicator: item.DebitCreditIndicator,
		Amount:               item.Amount,
		Description:          item.Description,
	}
}

// EventType returns the event type name
func (e *JournalEntryLineItemAddedEvent) EventType() string {
	return EventTypeJournalEntryLineItemAdded
}

// JournalEntryPostedEvent is the terminal event of a journal entry stream
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID     uuid.UUID         `json:"journal_entry_id"`
	JournalEntryNumber string            `json:"journal_entry_number"`
	PostedAt           time.Time         `json:"posted_at"`
	PostedBy           string            `json:"posted_by"`
	TotalDebitAmount   valueobject.Money `json:"total_debit_amount"`
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(je *JournalEntry, totalDebit valueobject.Money) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEventAt(EventTypeJournalEntryPosted, AggregateTypeJournalEntry, je.ID, *je.PostedAt),
		JournalEntryID:     je.ID,
		JournalEntryNumber: je.JournalEntryNumber,
		PostedAt:           *je.PostedAt,
		PostedBy:           je.PostedBy,
		TotalDebitAmount:   totalDebit,
	}
}

// EventType returns the event type name
func (e *JournalEntryPostedEvent) EventType() string {
	return EventTypeJournalEntryPosted
}
