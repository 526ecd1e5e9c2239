package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryLineItem is one debit or credit leg of a journal entry.
// It is owned by its JournalEntry and never changes after construction.
type JournalEntryLineItem struct {
	ID                   uuid.UUID
	JournalEntryID       uuid.UUID
	AccountID            uuid.UUID
	AccountNumber        string
	DebitCreditIndicator DebitCreditIndicator
	Amount               valueobject.Money
	Description          string
	CreatedAt            time.Time
}

func newJournalEntryLineItem(
	id uuid.UUID,
	journalEntryID uuid.UUID,
	accountID uuid.UUID,
	accountNumber string,
	indicator DebitCreditIndicator,
	amount valueobject.Money,
	description string,
	createdAt time.Time,
) (*JournalEntryLineItem, error) {
	if id == uuid.Nil {
		return nil, shared.NewValidationError("line item id cannot be empty")
	}
	if journalEntryID == uuid.Nil {
		return nil, shared.NewValidationError("journal entry id cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewValidationError("account id cannot be empty")
	}
	if strings.TrimSpace(accountNumber) == "" {
		return nil, shared.NewValidationError("account number cannot be empty")
	}
	if !indicator.IsValid() {
		return nil, shared.NewValidationError("invalid debit/credit indicator %q", indicator)
	}
	if amount.IsZero() {
		return nil, shared.NewValidationError("line item amount cannot be zero")
	}
	return &JournalEntryLineItem{
		ID:                   id,
		JournalEntryID:       journalEntryID,
		AccountID:            accountID,
		AccountNumber:        accountNumber,
		DebitCreditIndicator: indicator,
		Amount:               amount,
		Description:          description,
		CreatedAt:            createdAt,
	}, nil
}

// IsDebit reports whether the line item is on the debit side
func (li *JournalEntryLineItem) IsDebit() bool {
	return li.DebitCreditIndicator == Debit
}

// IsCredit reports whether the line item is on the credit side
func (li *JournalEntryLineItem) IsCredit() bool {
	return li.DebitCreditIndicator == Credit
}

// SignedAmount returns +amount for a debit and -amount for a credit
func (li *JournalEntryLineItem) SignedAmount() valueobject.Money {
	if li.IsCredit() {
		return li.Amount.Negate()
	}
	return li.Amount
}
