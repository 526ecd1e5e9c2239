package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountRepository is a mock implementation of ledger.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByNumber(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	args := m.Called(ctx, accountNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAll(ctx context.Context, activeOnly bool) ([]*ledger.Account, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByType(ctx context.Context, accountType ledger.AccountType, activeOnly bool) ([]*ledger.Account, error) {
	args := m.Called(ctx, accountType, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindHierarchy(ctx context.Context, id uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) ExistsByNumber(ctx context.Context, accountNumber string) (bool, error) {
	args := m.Called(ctx, accountNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) SaveBalanceUpdate(ctx context.Context, account *ledger.Account, posting ledger.AccountPosting) error {
	args := m.Called(ctx, account, posting)
	return args.Error(0)
}

func (m *MockAccountRepository) IsPostingApplied(ctx context.Context, lineItemID uuid.UUID) (bool, error) {
	args := m.Called(ctx, lineItemID)
	return args.Bool(0), args.Error(1)
}

// MockJournalEntryRepository is a mock implementation of ledger.JournalEntryRepository
type MockJournalEntryRepository struct {
	mock.Mock
}

func (m *MockJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) findList(args mock.Arguments) ([]*ledger.JournalEntry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByPostingDateRange(ctx context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx, from, to))
}

func (m *MockJournalEntryRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx, accountID))
}

func (m *MockJournalEntryRepository) FindUnposted(ctx context.Context) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx))
}

func (m *MockJournalEntryRepository) FindPostedByPeriod(ctx context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx, from, to))
}

func (m *MockJournalEntryRepository) FindByReference(ctx context.Context, reference string) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx, reference))
}

func (m *MockJournalEntryRepository) FindByCreatedBy(ctx context.Context, createdBy string) ([]*ledger.JournalEntry, error) {
	return m.findList(m.Called(ctx, createdBy))
}

func (m *MockJournalEntryRepository) FindAll(ctx context.Context, filter ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.JournalEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockJournalEntryRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) Update(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) NextEntryNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

var (
	_ ledger.AccountRepository      = (*MockAccountRepository)(nil)
	_ ledger.JournalEntryRepository = (*MockJournalEntryRepository)(nil)
)

// Test helpers

func usd(amount string) valueobject.Money {
	return valueobject.MustNewMoney(amount, valueobject.USD)
}

func newTestAccount(t *testing.T, number string, accountType ledger.AccountType) *ledger.Account {
	t.Helper()
	account, err := ledger.NewAccount(number, "Account "+number, "", accountType, "USD", nil, false)
	require.NoError(t, err)
	return account
}

func newPostedEntry(t *testing.T, debit, credit *ledger.Account, amount string) *ledger.JournalEntry {
	t.Helper()
	je, err := ledger.NewJournalEntry("JE-000001", time.Now(), time.Now(), "INV-1", "Cash sale", "USD", "alice")
	require.NoError(t, err)
	_, err = je.AddLineItem(debit.ID, debit.AccountNumber, ledger.Debit, usd(amount), "")
	require.NoError(t, err)
	_, err = je.AddLineItem(credit.ID, credit.AccountNumber, ledger.Credit, usd(amount), "")
	require.NoError(t, err)
	require.NoError(t, je.Post("bob"))
	je.MarkCommitted()
	return je
}
