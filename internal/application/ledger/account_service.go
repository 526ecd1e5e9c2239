package ledger

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService handles chart-of-accounts operations
type AccountService struct {
	accountRepo       ledger.AccountRepository
	logger            *zap.Logger
	maxHierarchyDepth int
}

// NewAccountService creates a new AccountService
func NewAccountService(accountRepo ledger.AccountRepository, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accountRepo:       accountRepo,
		logger:            logger,
		maxHierarchyDepth: ledger.DefaultMaxHierarchyDepth,
	}
}

// SetMaxHierarchyDepth bounds parent-chain walks during parent validation
func (s *AccountService) SetMaxHierarchyDepth(depth int) {
	if depth > 0 {
		s.maxHierarchyDepth = depth
	}
}

// CreateAccount opens a new account under an optional control-account parent
func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create")
	defer span.End()

	number := strings.TrimSpace(req.AccountNumber)
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountNumber, number)

	if err := ledger.ValidateAccountNumber(number); err != nil {
		return nil, err
	}
	accountType, err := ledger.ParseAccountType(req.AccountType)
	if err != nil {
		return nil, err
	}

	exists, err := s.accountRepo.ExistsByNumber(ctx, number)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.NewConflictError("account number %s already exists", number).
			WithCode(shared.CodeAlreadyExists)
	}

	account, err := ledger.NewAccount(number, req.Name, req.Description, accountType, req.Currency,
		req.ParentAccountID, req.IsControlAccount)
	if err != nil {
		return nil, err
	}

	if req.ParentAccountID != nil {
		parent, err := s.accountRepo.FindByID(ctx, *req.ParentAccountID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if err := ledger.ValidateParent(ctx, s.accountRepo, account, parent, s.maxHierarchyDepth); err != nil {
			return nil, err
		}
	}

	if err := s.accountRepo.Save(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Account created",
		zap.String("account_id", account.ID.String()),
		zap.String("account_number", account.AccountNumber),
		zap.String("account_type", account.AccountType.String()),
	)

	resp := ToAccountResponse(account)
	return &resp, nil
}

// GetAccount returns one account
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	account, err := s.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// GetAccountByNumber returns one account by its chart number
func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*AccountResponse, error) {
	account, err := s.accountRepo.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, shared.NewNotFoundError("account %s not found", number)
	}
	resp := ToAccountResponse(account)
	return &resp, nil
}

// GetAccounts lists accounts ordered by account number.
// With IncludeChildren each account carries its direct children.
func (s *AccountService) GetAccounts(ctx context.Context, query AccountQuery) ([]AccountResponse, error) {
	var (
		accounts []*ledger.Account
		err      error
	)

	var accountType ledger.AccountType
	if query.AccountType != "" {
		accountType, err = ledger.ParseAccountType(query.AccountType)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case query.ParentAccountID != "":
		parentID, parseErr := uuid.Parse(query.ParentAccountID)
		if parseErr != nil {
			return nil, shared.NewValidationError("invalid parent account id %q", query.ParentAccountID)
		}
		accounts, err = s.accountRepo.FindChildren(ctx, parentID)
		accounts = filterAccounts(accounts, accountType, query.ActiveOnly)
	case accountType != "":
		accounts, err = s.accountRepo.FindByType(ctx, accountType, query.ActiveOnly)
	default:
		accounts, err = s.accountRepo.FindAll(ctx, query.ActiveOnly)
	}
	if err != nil {
		return nil, err
	}

	responses := ToAccountResponses(accounts)
	if !query.IncludeChildren {
		return responses, nil
	}
	for i := range responses {
		children, err := s.accountRepo.FindChildren(ctx, responses[i].ID)
		if err != nil {
			return nil, err
		}
		responses[i].Children = ToAccountResponses(filterAccounts(children, "", query.ActiveOnly))
	}
	return responses, nil
}

// GetAccountHierarchy returns the ancestors of the account and the account itself, root first
func (s *AccountService) GetAccountHierarchy(ctx context.Context, id uuid.UUID) ([]AccountResponse, error) {
	chain, err := s.accountRepo.FindHierarchy(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, shared.NewNotFoundError("account %s not found", id)
	}
	return ToAccountResponses(chain), nil
}

// ActivateAccount makes an account usable again
func (s *AccountService) ActivateAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, id, "activate", func(a *ledger.Account) error {
		a.Activate()
		return nil
	})
}

// DeactivateAccount soft-deletes an account
func (s *AccountService) DeactivateAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	return s.mutate(ctx, id, "deactivate", func(a *ledger.Account) error {
		a.Deactivate()
		return nil
	})
}

// UpdateAccountInfo changes an account's name and description
func (s *AccountService) UpdateAccountInfo(ctx context.Context, id uuid.UUID, req UpdateAccountInfoRequest) (*AccountResponse, error) {
	return s.mutate(ctx, id, "update_info", func(a *ledger.Account) error {
		return a.UpdateInfo(req.Name, req.Description)
	})
}

func (s *AccountService) mutate(ctx context.Context, id uuid.UUID, op string, fn func(*ledger.Account) error) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrAccountID, id.String())

	account, err := s.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(account); err != nil {
		return nil, err
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Account updated",
		zap.String("account_id", account.ID.String()),
		zap.String("operation", op),
		zap.Int("version", account.Version),
	)

	resp := ToAccountResponse(account)
	return &resp, nil
}

func (s *AccountService) findAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, shared.NewNotFoundError("account %s not found", id)
	}
	return account, nil
}

func filterAccounts(accounts []*ledger.Account, accountType ledger.AccountType, activeOnly bool) []*ledger.Account {
	out := accounts[:0:0]
	for _, a := range accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		if accountType != "" && a.AccountType != accountType {
			continue
		}
		out = append(out, a)
	}
	return out
}
