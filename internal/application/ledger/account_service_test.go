package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validCreateAccountRequest() CreateAccountRequest {
	return CreateAccountRequest{
		AccountNumber: "1000",
		Name:          "Cash",
		AccountType:   "asset",
		Currency:      "USD",
	}
}

func TestAccountService_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a root account", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())

		repo.On("ExistsByNumber", mock.Anything, "1000").Return(false, nil)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(a *ledger.Account) bool {
			return a.AccountNumber == "1000" && a.AccountType == ledger.AccountTypeAsset && a.IsActive
		})).Return(nil)

		resp, err := svc.CreateAccount(ctx, validCreateAccountRequest())
		require.NoError(t, err)
		assert.Equal(t, "1000", resp.AccountNumber)
		assert.Equal(t, "ASSET", resp.AccountType)
		assert.Equal(t, "DEBIT", resp.NormalBalanceSide)
		assert.True(t, resp.CurrentBalance.IsZero())
		assert.Nil(t, resp.UpdatedAt)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate number", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		repo.On("ExistsByNumber", mock.Anything, "1000").Return(true, nil)

		_, err := svc.CreateAccount(ctx, validCreateAccountRequest())
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.CodeAlreadyExists, domainErr.Code)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("malformed number never reaches the repository", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		req := validCreateAccountRequest()
		req.AccountNumber = "10-0"

		_, err := svc.CreateAccount(ctx, req)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ledger.CodeInvalidAccountNumber, domainErr.Code)
		repo.AssertExpectations(t)
	})

	t.Run("unknown account type", func(t *testing.T) {
		svc := NewAccountService(new(MockAccountRepository), zap.NewNop())
		req := validCreateAccountRequest()
		req.AccountType = "CONTRA"

		_, err := svc.CreateAccount(ctx, req)
		assert.True(t, shared.IsValidationError(err))
	})

	t.Run("parent must be a control account", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		parent := newTestAccount(t, "1900", ledger.AccountTypeAsset)

		req := validCreateAccountRequest()
		req.ParentAccountID = &parent.ID
		repo.On("ExistsByNumber", mock.Anything, "1000").Return(false, nil)
		repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)

		_, err := svc.CreateAccount(ctx, req)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, ledger.CodeInvalidParent, domainErr.Code)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("missing parent", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		parentID := uuid.New()

		req := validCreateAccountRequest()
		req.ParentAccountID = &parentID
		repo.On("ExistsByNumber", mock.Anything, "1000").Return(false, nil)
		repo.On("FindByID", mock.Anything, parentID).Return(nil, nil)

		_, err := svc.CreateAccount(ctx, req)
		assert.True(t, shared.IsValidationError(err))
	})

	t.Run("child under control account", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		parent, err := ledger.NewAccount("1900", "Current assets", "", ledger.AccountTypeAsset, "USD", nil, true)
		require.NoError(t, err)

		req := validCreateAccountRequest()
		req.ParentAccountID = &parent.ID
		repo.On("ExistsByNumber", mock.Anything, "1000").Return(false, nil)
		repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.CreateAccount(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, resp.ParentAccountID)
		assert.Equal(t, parent.ID, *resp.ParentAccountID)
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		repo := new(MockAccountRepository)
		svc := NewAccountService(repo, zap.NewNop())
		repo.On("ExistsByNumber", mock.Anything, "1000").Return(false, errors.New("connection refused"))

		_, err := svc.CreateAccount(ctx, validCreateAccountRequest())
		assert.EqualError(t, err, "connection refused")
	})
}

func TestAccountService_GetAccounts(t *testing.T) {
	ctx := context.Background()
	cash := newTestAccount(t, "1000", ledger.AccountTypeAsset)
	bank := newTestAccount(t, "1100", ledger.AccountTypeAsset)
	sales := newTestAccount(t, "4000", ledger.AccountTypeRevenue)
	bank.Deactivate()

	t.Run("all", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("FindAll", ctx, false).Return([]*ledger.Account{cash, bank, sales}, nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.GetAccounts(ctx, AccountQuery{})
		require.NoError(t, err)
		assert.Len(t, resp, 3)
	})

	t.Run("by type", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("FindByType", ctx, ledger.AccountTypeRevenue, true).Return([]*ledger.Account{sales}, nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.GetAccounts(ctx, AccountQuery{AccountType: "revenue", ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, resp, 1)
		assert.Equal(t, "4000", resp[0].AccountNumber)
	})

	t.Run("children of a parent filtered in memory", func(t *testing.T) {
		parentID := uuid.New()
		repo := new(MockAccountRepository)
		repo.On("FindChildren", ctx, parentID).Return([]*ledger.Account{cash, bank}, nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.GetAccounts(ctx, AccountQuery{ParentAccountID: parentID.String(), ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, resp, 1)
		assert.Equal(t, "1000", resp[0].AccountNumber)
	})

	t.Run("include children", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("FindAll", ctx, false).Return([]*ledger.Account{cash}, nil)
		repo.On("FindChildren", ctx, cash.ID).Return([]*ledger.Account{bank}, nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.GetAccounts(ctx, AccountQuery{IncludeChildren: true})
		require.NoError(t, err)
		require.Len(t, resp, 1)
		require.Len(t, resp[0].Children, 1)
		assert.Equal(t, "1100", resp[0].Children[0].AccountNumber)
	})

	t.Run("bad parent id", func(t *testing.T) {
		svc := NewAccountService(new(MockAccountRepository), zap.NewNop())
		_, err := svc.GetAccounts(ctx, AccountQuery{ParentAccountID: "nope"})
		assert.True(t, shared.IsValidationError(err))
	})
}

func TestAccountService_GetAccount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := NewAccountService(repo, zap.NewNop())

	missing := uuid.New()
	repo.On("FindByID", ctx, missing).Return(nil, nil)

	_, err := svc.GetAccount(ctx, missing)
	assert.True(t, shared.IsNotFoundError(err))

	repo.On("FindByNumber", ctx, "9999").Return(nil, nil)
	_, err = svc.GetAccountByNumber(ctx, "9999")
	assert.True(t, shared.IsNotFoundError(err))
}

func TestAccountService_GetAccountHierarchy(t *testing.T) {
	ctx := context.Background()
	root := newTestAccount(t, "1000", ledger.AccountTypeAsset)
	leaf := newTestAccount(t, "1100", ledger.AccountTypeAsset)

	repo := new(MockAccountRepository)
	repo.On("FindHierarchy", ctx, leaf.ID).Return([]*ledger.Account{root, leaf}, nil)
	missing := uuid.New()
	repo.On("FindHierarchy", ctx, missing).Return([]*ledger.Account{}, nil)
	svc := NewAccountService(repo, zap.NewNop())

	chain, err := svc.GetAccountHierarchy(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "1000", chain[0].AccountNumber)
	assert.Equal(t, "1100", chain[1].AccountNumber)

	_, err = svc.GetAccountHierarchy(ctx, missing)
	assert.True(t, shared.IsNotFoundError(err))
}

func TestAccountService_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivate then activate", func(t *testing.T) {
		account := newTestAccount(t, "1000", ledger.AccountTypeAsset)
		repo := new(MockAccountRepository)
		repo.On("FindByID", mock.Anything, account.ID).Return(account, nil)
		repo.On("Update", mock.Anything, account).Return(nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.DeactivateAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		assert.NotNil(t, resp.UpdatedAt)

		resp, err = svc.ActivateAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, resp.IsActive)
		repo.AssertNumberOfCalls(t, "Update", 2)
	})

	t.Run("update info", func(t *testing.T) {
		account := newTestAccount(t, "1000", ledger.AccountTypeAsset)
		repo := new(MockAccountRepository)
		repo.On("FindByID", mock.Anything, account.ID).Return(account, nil)
		repo.On("Update", mock.Anything, account).Return(nil)
		svc := NewAccountService(repo, zap.NewNop())

		resp, err := svc.UpdateAccountInfo(ctx, account.ID, UpdateAccountInfoRequest{Name: "Petty cash", Description: "drawer"})
		require.NoError(t, err)
		assert.Equal(t, "Petty cash", resp.Name)
		assert.Equal(t, "drawer", resp.Description)
	})

	t.Run("blank name is rejected before update", func(t *testing.T) {
		account := newTestAccount(t, "1000", ledger.AccountTypeAsset)
		repo := new(MockAccountRepository)
		repo.On("FindByID", mock.Anything, account.ID).Return(account, nil)
		svc := NewAccountService(repo, zap.NewNop())

		_, err := svc.UpdateAccountInfo(ctx, account.ID, UpdateAccountInfoRequest{Name: "  "})
		assert.True(t, shared.IsValidationError(err))
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("version conflict propagates", func(t *testing.T) {
		account := newTestAccount(t, "1000", ledger.AccountTypeAsset)
		repo := new(MockAccountRepository)
		repo.On("FindByID", mock.Anything, account.ID).Return(account, nil)
		repo.On("Update", mock.Anything, account).Return(shared.NewConflictError("stale"))
		svc := NewAccountService(repo, zap.NewNop())

		_, err := svc.DeactivateAccount(ctx, account.ID)
		assert.True(t, shared.IsConflictError(err))
	})
}
