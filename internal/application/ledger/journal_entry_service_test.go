package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type journalEntryFixture struct {
	entries  *MockJournalEntryRepository
	accounts *MockAccountRepository
	svc      *JournalEntryService
	cash     *ledger.Account
	sales    *ledger.Account
}

func newJournalEntryFixture(t *testing.T) *journalEntryFixture {
	t.Helper()
	f := &journalEntryFixture{
		entries:  new(MockJournalEntryRepository),
		accounts: new(MockAccountRepository),
		cash:     newTestAccount(t, "1000", ledger.AccountTypeAsset),
		sales:    newTestAccount(t, "4000", ledger.AccountTypeRevenue),
	}
	f.svc = NewJournalEntryService(f.entries, f.accounts, zap.NewNop())
	f.accounts.On("FindByID", mock.Anything, f.cash.ID).Return(f.cash, nil).Maybe()
	f.accounts.On("FindByID", mock.Anything, f.sales.ID).Return(f.sales, nil).Maybe()
	return f
}

func (f *journalEntryFixture) request(debit, credit string) CreateJournalEntryRequest {
	return CreateJournalEntryRequest{
		PostingDate: "2024-03-15",
		Reference:   "INV-1001",
		Description: "Cash sale",
		Currency:    "USD",
		CreatedBy:   "alice",
		LineItems: []CreateLineItemInput{
			{AccountID: f.cash.ID, DebitCreditIndicator: "DEBIT", Amount: decimal.RequireFromString(debit)},
			{AccountID: f.sales.ID, DebitCreditIndicator: "credit", Amount: decimal.RequireFromString(credit)},
		},
	}
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestJournalEntryService_CreateJournalEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("records a balanced entry", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000042", nil)
		f.entries.On("Save", mock.Anything, mock.MatchedBy(func(je *ledger.JournalEntry) bool {
			return je.JournalEntryNumber == "JE-000042" && je.LineItemCount() == 2 && !je.IsPosted
		})).Return(nil)

		resp, err := f.svc.CreateJournalEntry(ctx, f.request("250.00", "250.00"))
		require.NoError(t, err)
		assert.Equal(t, "JE-000042", resp.JournalEntryNumber)
		assert.Equal(t, "2024-03-15", resp.PostingDate)
		assert.Equal(t, "2024-03-15", resp.DocumentDate, "document date defaults to posting date")
		assert.True(t, resp.IsBalanced)
		assert.False(t, resp.IsPosted)
		assert.True(t, resp.TotalDebit.Equals(usd("250.00")))
		assert.True(t, resp.TotalCredit.Equals(usd("250.00")))
		require.Len(t, resp.LineItems, 2)
		assert.Equal(t, "1000", resp.LineItems[0].AccountNumber)
		assert.Equal(t, "CREDIT", resp.LineItems[1].DebitCreditIndicator)
		f.entries.AssertExpectations(t)
	})

	t.Run("unbalanced entry is rejected", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)

		_, err := f.svc.CreateJournalEntry(ctx, f.request("100.00", "99.99"))
		assert.Equal(t, ledger.CodeNotBalanced, domainCode(t, err))
		f.entries.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("single line is rejected", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		req := f.request("100.00", "100.00")
		req.LineItems = req.LineItems[:1]

		_, err := f.svc.CreateJournalEntry(ctx, req)
		assert.Equal(t, ledger.CodeTooFewLineItems, domainCode(t, err))
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		missing := uuid.New()
		f.accounts.On("FindByID", mock.Anything, missing).Return(nil, nil)
		req := f.request("100.00", "100.00")
		req.LineItems[1].AccountID = missing

		_, err := f.svc.CreateJournalEntry(ctx, req)
		assert.True(t, shared.IsNotFoundError(err))
	})

	t.Run("inactive account is not usable", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		f.sales.Deactivate()

		_, err := f.svc.CreateJournalEntry(ctx, f.request("100.00", "100.00"))
		assert.Equal(t, ledger.CodeAccountNotUsable, domainCode(t, err))
	})

	t.Run("control account is not usable", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		f.cash.IsControlAccount = true

		_, err := f.svc.CreateJournalEntry(ctx, f.request("100.00", "100.00"))
		assert.Equal(t, ledger.CodeAccountNotUsable, domainCode(t, err))
	})

	t.Run("account in another currency", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		req := f.request("100.00", "100.00")
		req.Currency = "EUR"

		_, err := f.svc.CreateJournalEntry(ctx, req)
		assert.True(t, shared.IsCurrencyMismatchError(err))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)

		_, err := f.svc.CreateJournalEntry(ctx, f.request("-5.00", "-5.00"))
		assert.True(t, shared.IsValidationError(err))
	})

	t.Run("bad date", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		req := f.request("1.00", "1.00")
		req.PostingDate = "15/03/2024"

		_, err := f.svc.CreateJournalEntry(ctx, req)
		assert.True(t, shared.IsValidationError(err))
		f.entries.AssertNotCalled(t, "NextEntryNumber", mock.Anything)
	})

	t.Run("missing creator falls back to system", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		f.entries.On("NextEntryNumber", mock.Anything).Return("JE-000001", nil)
		f.entries.On("Save", mock.Anything, mock.Anything).Return(nil)
		req := f.request("1.00", "1.00")
		req.CreatedBy = ""

		resp, err := f.svc.CreateJournalEntry(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, SystemUser, resp.CreatedBy)
	})
}

func TestJournalEntryService_PostJournalEntry(t *testing.T) {
	ctx := context.Background()

	newUnposted := func(t *testing.T, f *journalEntryFixture) *ledger.JournalEntry {
		je, err := ledger.NewJournalEntry("JE-000007", time.Now(), time.Now(), "INV-7", "", "USD", "alice")
		require.NoError(t, err)
		_, err = je.AddLineItem(f.cash.ID, f.cash.AccountNumber, ledger.Debit, usd("10.00"), "")
		require.NoError(t, err)
		_, err = je.AddLineItem(f.sales.ID, f.sales.AccountNumber, ledger.Credit, usd("10.00"), "")
		require.NoError(t, err)
		je.MarkCommitted()
		return je
	}

	t.Run("posts and appends the posted event", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		je := newUnposted(t, f)
		f.entries.On("FindByID", mock.Anything, je.ID).Return(je, nil)
		f.entries.On("Update", mock.Anything, mock.MatchedBy(func(e *ledger.JournalEntry) bool {
			events := e.GetDomainEvents()
			return e.IsPosted && len(events) == 1 && events[0].EventType() == ledger.EventTypeJournalEntryPosted
		})).Return(nil)

		resp, err := f.svc.PostJournalEntry(ctx, je.ID, "bob")
		require.NoError(t, err)
		assert.True(t, resp.IsPosted)
		assert.Equal(t, "bob", resp.PostedBy)
		assert.NotNil(t, resp.PostedAt)
		f.entries.AssertExpectations(t)
	})

	t.Run("already posted", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		je := newPostedEntry(t, f.cash, f.sales, "10.00")
		f.entries.On("FindByID", mock.Anything, je.ID).Return(je, nil)

		_, err := f.svc.PostJournalEntry(ctx, je.ID, "bob")
		assert.Equal(t, ledger.CodeAlreadyPosted, domainCode(t, err))
		f.entries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		id := uuid.New()
		f.entries.On("FindByID", mock.Anything, id).Return(nil, nil)

		_, err := f.svc.PostJournalEntry(ctx, id, "bob")
		assert.True(t, shared.IsNotFoundError(err))
	})

	t.Run("concurrent append surfaces as conflict", func(t *testing.T) {
		f := newJournalEntryFixture(t)
		je := newUnposted(t, f)
		f.entries.On("FindByID", mock.Anything, je.ID).Return(je, nil)
		f.entries.On("Update", mock.Anything, mock.Anything).Return(shared.NewConflictError("stream moved"))

		_, err := f.svc.PostJournalEntry(ctx, je.ID, "bob")
		assert.True(t, shared.IsConflictError(err))
	})
}

func TestJournalEntryService_GetJournalEntries(t *testing.T) {
	ctx := context.Background()
	f := newJournalEntryFixture(t)
	je := newPostedEntry(t, f.cash, f.sales, "10.00")

	posted := true
	f.entries.On("FindAll", ctx, mock.MatchedBy(func(filter ledger.JournalEntryFilter) bool {
		return filter.Page == 2 && filter.PageSize == 1 &&
			filter.IsPosted != nil && *filter.IsPosted &&
			filter.AccountID != nil && *filter.AccountID == f.cash.ID &&
			filter.FromDate != nil && filter.FromDate.Format(DateLayout) == "2024-01-01"
	})).Return([]*ledger.JournalEntry{je}, int64(3), nil)

	resp, err := f.svc.GetJournalEntries(ctx, JournalEntryQuery{
		FromDate:  "2024-01-01",
		AccountID: f.cash.ID.String(),
		IsPosted:  &posted,
		Page:      2,
		PageSize:  1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrevious)
	assert.Equal(t, 2, resp.Items[0].LineItemCount)

	t.Run("inverted range", func(t *testing.T) {
		_, err := f.svc.GetJournalEntries(ctx, JournalEntryQuery{FromDate: "2024-02-01", ToDate: "2024-01-01"})
		assert.True(t, shared.IsValidationError(err))
	})
}

func TestJournalEntryService_GetJournalEntry(t *testing.T) {
	ctx := context.Background()
	f := newJournalEntryFixture(t)
	je := newPostedEntry(t, f.cash, f.sales, "10.00")
	f.entries.On("FindByID", ctx, je.ID).Return(je, nil)
	f.entries.On("FindByNumber", ctx, "JE-999999").Return(nil, nil)

	resp, err := f.svc.GetJournalEntry(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, je.JournalEntryNumber, resp.JournalEntryNumber)
	assert.Equal(t, 4, resp.Version)

	_, err = f.svc.GetJournalEntryByNumber(ctx, "JE-999999")
	assert.True(t, shared.IsNotFoundError(err))
}
