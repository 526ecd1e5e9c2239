package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntry is the aggregate root of a double-entry posting.
// Its state is the fold of its event stream: Created, then any number of
// LineItemAdded, then at most one Posted. Once posted it is immutable.
//
// Version is the number of events already committed to the stream.
// Pending events are appended by the repository at Version+1, Version+2, ...
type JournalEntry struct {
	shared.BaseAggregateRoot
	JournalEntryNumber string
	PostingDate        time.Time
	DocumentDate       time.Time
	Reference          string
	Description        string
	Currency           valueobject.Currency
	IsPosted           bool
	CreatedBy          string
	PostedAt           *time.Time
	PostedBy           string
	LineItems          []JournalEntryLineItem
}

// NewJournalEntry creates a new unposted journal entry and raises JournalEntryCreated
func NewJournalEntry(
	journalEntryNumber string,
	postingDate time.Time,
	documentDate time.Time,
	reference string,
	description string,
	currency string,
	createdBy string,
) (*JournalEntry, error) {
	if strings.TrimSpace(journalEntryNumber) == "" {
		return nil, shared.NewValidationError("journal entry number cannot be empty")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, shared.NewValidationError("reference cannot be empty")
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, shared.NewValidationError("created by cannot be empty")
	}
	cur, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	je := &JournalEntry{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		JournalEntryNumber: strings.TrimSpace(journalEntryNumber),
		PostingDate:        TruncateToDay(postingDate),
		DocumentDate:       TruncateToDay(documentDate),
		Reference:          reference,
		Description:        description,
		Currency:           cur,
		CreatedBy:          createdBy,
		LineItems:          make([]JournalEntryLineItem, 0),
	}
	je.Version = 0

	je.AddDomainEvent(NewJournalEntryCreatedEvent(je))
	return je, nil
}

// AddLineItem appends a debit or credit line and raises JournalEntryLineItemAdded.
// Nothing is appended when an error is returned.
func (je *JournalEntry) AddLineItem(
	accountID uuid.UUID,
	accountNumber string,
	indicator DebitCreditIndicator,
	amount valueobject.Money,
	description string,
) (*JournalEntryLineItem, error) {
	if je.IsPosted {
		return nil, shared.NewStateError("Cannot modify posted journal entry %s", je.JournalEntryNumber)
	}
	if amount.Currency() != je.Currency {
		return nil, shared.NewCurrencyMismatchError(
			"Line item currency %s does not match journal entry currency %s", amount.Currency(), je.Currency)
	}

	item, err := newJournalEntryLineItem(
		uuid.New(), je.ID, accountID, accountNumber, indicator, amount, description, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	je.LineItems = append(je.LineItems, *item)
	je.UpdatedAt = item.CreatedAt
	je.AddDomainEvent(NewJournalEntryLineItemAddedEvent(je, item))
	return item, nil
}

// Post finalizes the entry and raises JournalEntryPosted carrying the total debit amount
func (je *JournalEntry) Post(postedBy string) error {
	if je.IsPosted {
		return shared.NewStateError("Journal entry %s is already posted", je.JournalEntryNumber).WithCode(CodeAlreadyPosted)
	}
	if strings.TrimSpace(postedBy) == "" {
		return shared.NewValidationError("Posted by cannot be null or empty")
	}
	if err := je.ValidateForPosting(); err != nil {
		return err
	}
	totalDebit, err := je.TotalDebitAmount()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	je.IsPosted = true
	je.PostedAt = &now
	je.PostedBy = postedBy
	je.UpdatedAt = now

	je.AddDomainEvent(NewJournalEntryPostedEvent(je, totalDebit))
	return nil
}

// ValidateForPosting checks the double-entry rules without changing state
func (je *JournalEntry) ValidateForPosting() error {
	switch len(je.LineItems) {
	case 0:
		return shared.NewStateError("Cannot post journal entry without line items").WithCode(CodeNoLineItems)
	case 1:
		return shared.NewStateError("Journal entry must have at least 2 line items").WithCode(CodeTooFewLineItems)
	}

	debits, err := je.TotalDebitAmount()
	if err != nil {
		return err
	}
	credits, err := je.TotalCreditAmount()
	if err != nil {
		return err
	}
	if !debits.Equals(credits) {
		return shared.NewStateError("Journal entry is not balanced. Debits: %s, Credits: %s", debits, credits).
			WithCode(CodeNotBalanced)
	}

	for i := range je.LineItems {
		if strings.TrimSpace(je.LineItems[i].AccountNumber) == "" {
			return shared.NewStateError("All line items must have valid account numbers")
		}
	}
	return nil
}

// TotalDebitAmount sums the debit lines in the entry currency
func (je *JournalEntry) TotalDebitAmount() (valueobject.Money, error) {
	return je.sumBy(Debit)
}

// TotalCreditAmount sums the credit lines in the entry currency
func (je *JournalEntry) TotalCreditAmount() (valueobject.Money, error) {
	return je.sumBy(Credit)
}

func (je *JournalEntry) sumBy(indicator DebitCreditIndicator) (valueobject.Money, error) {
	total := valueobject.Zero(je.Currency)
	for i := range je.LineItems {
		if je.LineItems[i].DebitCreditIndicator != indicator {
			continue
		}
		var err error
		total, err = total.Add(je.LineItems[i].Amount)
		if err != nil {
			return valueobject.Money{}, err
		}
	}
	return total, nil
}

// IsBalanced reports whether total debits equal total credits exactly
func (je *JournalEntry) IsBalanced() bool {
	debits, err := je.TotalDebitAmount()
	if err != nil {
		return false
	}
	credits, err := je.TotalCreditAmount()
	if err != nil {
		return false
	}
	return debits.Equals(credits)
}

// LineItemCount returns the number of line items
func (je *JournalEntry) LineItemCount() int {
	return len(je.LineItems)
}

// ReferencesAccount reports whether any line item points at the given account
func (je *JournalEntry) ReferencesAccount(accountID uuid.UUID) bool {
	for i := range je.LineItems {
		if je.LineItems[i].AccountID == accountID {
			return true
		}
	}
	return false
}

// StreamVersion returns the version of the last committed event
func (je *JournalEntry) StreamVersion() int {
	return je.Version
}

// MarkCommitted advances the stream version past the pending events and clears them.
// Repositories call it only after the transaction holding those events has committed.
func (je *JournalEntry) MarkCommitted() {
	je.Version += len(je.GetDomainEvents())
	je.ClearDomainEvents()
}

// String returns "number - description (yyyy-mm-dd)"
func (je *JournalEntry) String() string {
	return fmt.Sprintf("%s - %s (%s)", je.JournalEntryNumber, je.Description, je.PostingDate.Format("2006-01-02"))
}

// TruncateToDay drops the time of day, keeping the calendar date as seen in t's location
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RehydrateJournalEntry rebuilds a journal entry by replaying its committed event stream in order.
// The returned entry has no pending events and its Version equals len(history).
func RehydrateJournalEntry(history []shared.DomainEvent) (*JournalEntry, error) {
	if len(history) == 0 {
		return nil, shared.NewNotFoundError("journal entry event stream is empty")
	}
	je := &JournalEntry{}
	for i, event := range history {
		if err := je.apply(i, event); err != nil {
			return nil, err
		}
	}
	je.Version = len(history)
	je.ClearDomainEvents()
	return je, nil
}

func (je *JournalEntry) apply(position int, event shared.DomainEvent) error {
	if position == 0 {
		if _, ok := event.(*JournalEntryCreatedEvent); !ok {
			return shared.NewStateError("journal entry stream must start with %s, got %s",
				EventTypeJournalEntryCreated, event.EventType())
		}
	}

	switch e := event.(type) {
	case *JournalEntryCreatedEvent:
		if position != 0 {
			return shared.NewStateError("journal entry %s created twice", e.JournalEntryID)
		}
		je.ID = e.JournalEntryID
		je.CreatedAt = e.OccurredAt()
		je.UpdatedAt = e.OccurredAt()
		je.JournalEntryNumber = e.JournalEntryNumber
		je.PostingDate = e.PostingDate.UTC()
		je.DocumentDate = e.DocumentDate.UTC()
		je.Reference = e.Reference
		je.Description = e.Description
		je.Currency = e.Currency
		je.CreatedBy = e.CreatedBy
		je.LineItems = make([]JournalEntryLineItem, 0)

	case *JournalEntryLineItemAddedEvent:
		if je.IsPosted {
			return shared.NewStateError("journal entry %s has a line item after posting", je.ID)
		}
		item, err := newJournalEntryLineItem(
			e.LineItemID, je.ID, e.AccountID, e.AccountNumber, e.DebitCreditIndicator,
			e.Amount, e.Description, e.OccurredAt())
		if err != nil {
			return err
		}
		je.LineItems = append(je.LineItems, *item)
		je.UpdatedAt = e.OccurredAt()

	case *JournalEntryPostedEvent:
		if je.IsPosted {
			return shared.NewStateError("journal entry %s posted twice", je.ID)
		}
		postedAt := e.PostedAt.UTC()
		je.IsPosted = true
		je.PostedAt = &postedAt
		je.PostedBy = e.PostedBy
		je.UpdatedAt = postedAt

	default:
		return shared.NewStateError("unknown journal entry event type %s", event.EventType())
	}
	return nil
}
