package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type constants for Account
const (
	EventTypeAccountBalanceUpdated = "AccountBalanceUpdated"
)

// balanceEventNamespace derives AccountBalanceUpdated ids from line item ids, so every
// delivery of a posting raises the same event id for the same line.
var balanceEventNamespace = uuid.MustParse("6f1c2a7e-3b8d-4e51-9a0f-2d4c8b7e1a53")

// BalanceUpdatedEventID is the event id of the AccountBalanceUpdated raised for lineItemID
func BalanceUpdatedEventID(lineItemID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(balanceEventNamespace, lineItemID[:])
}

// AccountBalanceUpdatedEvent is raised once per line item of a posted entry. Read models
// consume it; it does not drive the balance mutation itself. NewBalance is nil and
// AccountMissing is set when the line's account no longer exists.
type AccountBalanceUpdatedEvent struct {
	shared.BaseDomainEvent
	AccountID          uuid.UUID          `json:"account_id"`
	AccountNumber      string             `json:"account_number"`
	JournalEntryID     uuid.UUID          `json:"journal_entry_id"`
	JournalEntryNumber string             `json:"journal_entry_number"`
	LineItemID         uuid.UUID          `json:"line_item_id"`
	BalanceChange      valueobject.Money  `json:"balance_change"`
	NewBalance         *valueobject.Money `json:"new_balance,omitempty"`
	AccountMissing     bool               `json:"account_missing,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewAccountBalanceUpdatedEvent records the line applied to account. updatedAt is the
// entry's posting time.
func NewAccountBalanceUpdatedEvent(
	account *Account,
	entry *JournalEntry,
	item *JournalEntryLineItem,
	updatedAt time.Time,
) *AccountBalanceUpdatedEvent {
	e := newBalanceUpdated(entry, item, updatedAt)
	e.AccountNumber = account.AccountNumber
	balance := account.CurrentBalance
	e.NewBalance = &balance
	return e
}

// NewSkippedBalanceUpdatedEvent records a line whose account was not found, so no balance moved
func NewSkippedBalanceUpdatedEvent(entry *JournalEntry, item *JournalEntryLineItem, updatedAt time.Time) *AccountBalanceUpdatedEvent {
	e := newBalanceUpdated(entry, item, updatedAt)
	e.AccountMissing = true
	return e
}

func newBalanceUpdated(entry *JournalEntry, item *JournalEntryLineItem, updatedAt time.Time) *AccountBalanceUpdatedEvent {
	base := shared.NewBaseDomainEventAt(EventTypeAccountBalanceUpdated, AggregateTypeAccount, item.AccountID, updatedAt)
	base.ID = BalanceUpdatedEventID(item.ID)
	return &AccountBalanceUpdatedEvent{
		BaseDomainEvent:    base,
		AccountID:          item.AccountID,
		AccountNumber:      item.AccountNumber,
		JournalEntryID:     entry.ID,
		JournalEntryNumber: entry.JournalEntryNumber,
		LineItemID:         item.ID,
		BalanceChange:      item.SignedAmount(),
		UpdatedAt:          updatedAt,
	}
}

// EventType returns the event type name
func (e *AccountBalanceUpdatedEvent) EventType() string {
	return EventTypeAccountBalanceUpdated
}
