package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AccountPosting records that one journal entry line item has been applied to an account balance.
// Line item ids are unique, so a posting can only ever be applied once.
type AccountPosting struct {
	LineItemID     uuid.UUID
	AccountID      uuid.UUID
	JournalEntryID uuid.UUID
	Amount         valueobject.Money
	AppliedAt      time.Time
}

// NewAccountPosting builds the posting record for applying item to its account
func NewAccountPosting(entry *JournalEntry, item *JournalEntryLineItem, appliedAt time.Time) AccountPosting {
	return AccountPosting{
		LineItemID:     item.ID,
		AccountID:      item.AccountID,
		JournalEntryID: entry.ID,
		Amount:         item.SignedAmount(),
		AppliedAt:      appliedAt,
	}
}

// AccountRepository is the chart-of-accounts store.
// Finders return (nil, nil) when nothing matches.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByNumber(ctx context.Context, accountNumber string) (*Account, error)
	FindAll(ctx context.Context, activeOnly bool) ([]*Account, error)
	FindByType(ctx context.Context, accountType AccountType, activeOnly bool) ([]*Account, error)
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]*Account, error)
	// FindHierarchy returns the ancestors of id and the account itself, root first
	FindHierarchy(ctx context.Context, id uuid.UUID) ([]*Account, error)
	ExistsByNumber(ctx context.Context, accountNumber string) (bool, error)

	// Save inserts a new account
	Save(ctx context.Context, account *Account) error
	// Update writes the account if its version is unchanged since it was loaded.
	// A stale version yields a ConflictError.
	Update(ctx context.Context, account *Account) error
	// SaveBalanceUpdate writes the account with the same version check as Update
	// and records the posting in the same transaction. A posting already
	// recorded yields a ConflictError and leaves the account untouched.
	SaveBalanceUpdate(ctx context.Context, account *Account, posting AccountPosting) error
	// IsPostingApplied reports whether the line item has already been applied
	IsPostingApplied(ctx context.Context, lineItemID uuid.UUID) (bool, error)
}

// JournalEntryFilter narrows a paged journal entry listing
type JournalEntryFilter struct {
	shared.Filter
	FromDate  *time.Time
	ToDate    *time.Time
	AccountID *uuid.UUID
	IsPosted  *bool
	Reference string
	CreatedBy string
}

// DefaultJournalEntryFilter returns the first page of 50, newest first
func DefaultJournalEntryFilter() JournalEntryFilter {
	return JournalEntryFilter{Filter: shared.DefaultFilter()}
}

// JournalEntryRepository stores journal entries as event streams with a queryable projection.
// FindByID rebuilds the aggregate from its stream; the list finders read the projection.
// Finders return (nil, nil) or an empty slice when nothing matches.
type JournalEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	FindByNumber(ctx context.Context, number string) (*JournalEntry, error)
	FindByPostingDateRange(ctx context.Context, from, to time.Time) ([]*JournalEntry, error)
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*JournalEntry, error)
	FindUnposted(ctx context.Context) ([]*JournalEntry, error)
	FindPostedByPeriod(ctx context.Context, from, to time.Time) ([]*JournalEntry, error)
	FindByReference(ctx context.Context, reference string) ([]*JournalEntry, error)
	FindByCreatedBy(ctx context.Context, createdBy string) ([]*JournalEntry, error)
	FindAll(ctx context.Context, filter JournalEntryFilter) ([]*JournalEntry, int64, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// Save starts a new stream. It fails with a ConflictError if the stream already exists.
	Save(ctx context.Context, entry *JournalEntry) error
	// Update appends the pending events at the entry's stream version.
	// It fails with a ConflictError if another writer appended first.
	Update(ctx context.Context, entry *JournalEntry) error
	// NextEntryNumber returns the number following the highest JE-NNNNNN in use
	NextEntryNumber(ctx context.Context) (string, error)
}
