package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for the Account aggregate root.
type AccountModel struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey"`
	AccountNumber    string             `gorm:"type:varchar(10);not null;uniqueIndex:idx_accounts_number"`
	Name             string             `gorm:"type:varchar(200);not null"`
	Description      string             `gorm:"type:text"`
	AccountType      ledger.AccountType `gorm:"type:varchar(20);not null;index:idx_accounts_type"`
	Currency         string             `gorm:"type:char(3);not null"`
	IsActive         bool               `gorm:"not null;index:idx_accounts_type"`
	IsControlAccount bool               `gorm:"not null"`
	ParentAccountID  *uuid.UUID         `gorm:"type:uuid;index:idx_accounts_parent"`
	BalanceAmount    decimal.Decimal    `gorm:"type:decimal(19,2);not null"`
	Version          int                `gorm:"not null;default:1"`
	CreatedAt        time.Time          `gorm:"not null"`
	UpdatedAt        *time.Time         `gorm:"autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the persistence model to a domain Account.
// The stored balance is trusted to carry the account currency.
func (m *AccountModel) ToDomain() *ledger.Account {
	currency := valueobject.Currency(m.Currency)
	balance, err := valueobject.NewMoney(m.BalanceAmount, currency)
	if err != nil {
		balance = valueobject.Zero(currency)
	}
	a := &ledger.Account{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
			},
			Version: m.Version,
		},
		AccountNumber:    m.AccountNumber,
		Name:             m.Name,
		Description:      m.Description,
		AccountType:      m.AccountType,
		Currency:         currency,
		IsActive:         m.IsActive,
		IsControlAccount: m.IsControlAccount,
		ParentAccountID:  m.ParentAccountID,
		CurrentBalance:   balance,
	}
	if m.UpdatedAt != nil {
		a.UpdatedAt = *m.UpdatedAt
	}
	return a
}

// FromDomain populates the persistence model from a domain Account.
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.ID = a.ID
	m.AccountNumber = a.AccountNumber
	m.Name = a.Name
	m.Description = a.Description
	m.AccountType = a.AccountType
	m.Currency = a.Currency.String()
	m.IsActive = a.IsActive
	m.IsControlAccount = a.IsControlAccount
	m.ParentAccountID = a.ParentAccountID
	m.BalanceAmount = a.CurrentBalance.Amount()
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = nil
	if a.HasBeenUpdated() {
		updated := a.UpdatedAt
		m.UpdatedAt = &updated
	}
}

// AccountModelFromDomain creates a new persistence model from a domain Account.
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// AccountPostingModel records one line item applied to an account balance.
// The primary key on line_item_id is what makes balance application exact-once.
type AccountPostingModel struct {
	LineItemID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_postings_account"`
	JournalEntryID uuid.UUID       `gorm:"type:uuid;not null;index:idx_postings_entry"`
	Amount         decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	Currency       string          `gorm:"type:char(3);not null"`
	AppliedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountPostingModel) TableName() string {
	return "account_postings"
}

// AccountPostingModelFromDomain creates the posting row for p
func AccountPostingModelFromDomain(p ledger.AccountPosting) *AccountPostingModel {
	return &AccountPostingModel{
		LineItemID:     p.LineItemID,
		AccountID:      p.AccountID,
		JournalEntryID: p.JournalEntryID,
		Amount:         p.Amount.Amount(),
		Currency:       p.Amount.Currency().String(),
		AppliedAt:      p.AppliedAt,
	}
}

// JournalEntryEventModel is one event in a journal entry stream.
// (stream_id, version) is unique: two writers appending at the same version cannot both commit.
type JournalEntryEventModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StreamID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_je_events_stream_version,priority:1"`
	Version       int       `gorm:"not null;uniqueIndex:idx_je_events_stream_version,priority:2"`
	EventType     string    `gorm:"type:varchar(100);not null"`
	SchemaVersion int       `gorm:"not null;default:1"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time `gorm:"not null"`
	RecordedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JournalEntryEventModel) TableName() string {
	return "journal_entry_events"
}

// JournalEntryModel is the queryable projection of a journal entry stream.
// Version mirrors the stream version the row was projected from.
type JournalEntryModel struct {
	AggregateModel
	JournalEntryNumber string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_journal_entries_number"`
	PostingDate        time.Time       `gorm:"not null;index:idx_journal_entries_posting_date"`
	DocumentDate       time.Time       `gorm:"not null"`
	Reference          string          `gorm:"type:varchar(100);index:idx_journal_entries_reference"`
	Description        string          `gorm:"type:text"`
	Currency           string          `gorm:"type:char(3);not null"`
	IsPosted           bool            `gorm:"not null;index:idx_journal_entries_posted"`
	TotalDebit         decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	TotalCredit        decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	CreatedBy          string          `gorm:"type:varchar(100);not null;index:idx_journal_entries_created_by"`
	PostedAt           *time.Time
	PostedBy           string                      `gorm:"type:varchar(100)"`
	LineItems          []JournalEntryLineItemModel `gorm:"foreignKey:JournalEntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ToDomain rebuilds the aggregate from the projection without replaying events.
// Line items must be preloaded ordered by line number.
func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	je := &ledger.JournalEntry{
		BaseAggregateRoot:  m.AggregateModel.root(),
		JournalEntryNumber: m.JournalEntryNumber,
		PostingDate:        m.PostingDate.UTC(),
		DocumentDate:       m.DocumentDate.UTC(),
		Reference:          m.Reference,
		Description:        m.Description,
		Currency:           valueobject.Currency(m.Currency),
		IsPosted:           m.IsPosted,
		CreatedBy:          m.CreatedBy,
		PostedAt:           m.PostedAt,
		PostedBy:           m.PostedBy,
		LineItems:          make([]ledger.JournalEntryLineItem, 0, len(m.LineItems)),
	}
	for i := range m.LineItems {
		je.LineItems = append(je.LineItems, m.LineItems[i].ToDomain())
	}
	return je
}

// FromDomain populates the projection row and its line items from a domain JournalEntry.
func (m *JournalEntryModel) FromDomain(je *ledger.JournalEntry) {
	m.AggregateModel = aggregateModelOf(je.BaseAggregateRoot)
	m.JournalEntryNumber = je.JournalEntryNumber
	m.PostingDate = je.PostingDate
	m.DocumentDate = je.DocumentDate
	m.Reference = je.Reference
	m.Description = je.Description
	m.Currency = je.Currency.String()
	m.IsPosted = je.IsPosted
	if debits, err := je.TotalDebitAmount(); err == nil {
		m.TotalDebit = debits.Amount()
	}
	if credits, err := je.TotalCreditAmount(); err == nil {
		m.TotalCredit = credits.Amount()
	}
	m.CreatedBy = je.CreatedBy
	m.PostedAt = je.PostedAt
	m.PostedBy = je.PostedBy
	m.LineItems = make([]JournalEntryLineItemModel, len(je.LineItems))
	for i := range je.LineItems {
		m.LineItems[i].FromDomain(&je.LineItems[i])
		m.LineItems[i].LineNumber = i + 1
	}
}

// JournalEntryModelFromDomain creates a new projection row from a domain JournalEntry.
func JournalEntryModelFromDomain(je *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(je)
	return m
}

// JournalEntryLineItemModel is the projection row of a line item, used for account queries.
type JournalEntryLineItemModel struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	JournalEntryID       uuid.UUID                   `gorm:"type:uuid;not null;index:idx_je_line_items_entry,priority:1"`
	LineNumber           int                         `gorm:"not null;index:idx_je_line_items_entry,priority:2"`
	AccountID            uuid.UUID                   `gorm:"type:uuid;not null;index:idx_je_line_items_account"`
	AccountNumber        string                      `gorm:"type:varchar(10);not null"`
	DebitCreditIndicator ledger.DebitCreditIndicator `gorm:"type:varchar(6);not null"`
	Amount               decimal.Decimal             `gorm:"type:decimal(19,2);not null"`
	Currency             string                      `gorm:"type:char(3);not null"`
	Description          string                      `gorm:"type:text"`
	CreatedAt            time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JournalEntryLineItemModel) TableName() string {
	return "journal_entry_line_items"
}

// ToDomain converts the projection row to a domain line item.
func (m *JournalEntryLineItemModel) ToDomain() ledger.JournalEntryLineItem {
	amount, err := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	if err != nil {
		amount = valueobject.Zero(valueobject.Currency(m.Currency))
	}
	return ledger.JournalEntryLineItem{
		ID:                   m.ID,
		JournalEntryID:       m.JournalEntryID,
		AccountID:            m.AccountID,
		AccountNumber:        m.AccountNumber,
		DebitCreditIndicator: m.DebitCreditIndicator,
		Amount:               amount,
		Description:          m.Description,
		CreatedAt:            m.CreatedAt,
	}
}

// FromDomain populates the projection row from a domain line item.
func (m *JournalEntryLineItemModel) FromDomain(item *ledger.JournalEntryLineItem) {
	m.ID = item.ID
	m.JournalEntryID = item.JournalEntryID
	m.AccountID = item.AccountID
	m.AccountNumber = item.AccountNumber
	m.DebitCreditIndicator = item.DebitCreditIndicator
	m.Amount = item.Amount.Amount()
	m.Currency = item.Amount.Currency().String()
	m.Description = item.Description
	m.CreatedAt = item.CreatedAt
}

// LedgerModels lists every ledger table model, in dependency order, for AutoMigrate in tests.
func LedgerModels() []any {
	return []any{
		&AccountModel{},
		&AccountPostingModel{},
		&JournalEntryEventModel{},
		&JournalEntryModel{},
		&JournalEntryLineItemModel{},
		&OutboxEntryModel{},
	}
}
