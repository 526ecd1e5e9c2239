package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Account is a chart-of-accounts entry.
// The balance is debit-positive: debits increase it and credits decrease it,
// whatever the account type's normal side is.
// Accounts are soft-deactivated and never deleted.
type Account struct {
	shared.BaseAggregateRoot
	AccountNumber    string
	Name             string
	Description      string
	AccountType      AccountType
	Currency         valueobject.Currency
	IsActive         bool
	IsControlAccount bool
	ParentAccountID  *uuid.UUID
	CurrentBalance   valueobject.Money
}

// NewAccount creates a new active account with a zero balance
func NewAccount(
	accountNumber string,
	name string,
	description string,
	accountType AccountType,
	currency string,
	parentAccountID *uuid.UUID,
	isControlAccount bool,
) (*Account, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, shared.NewValidationError("account number cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewValidationError("invalid account type %q", accountType)
	}
	cur, err := valueobject.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}

	account := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AccountNumber:     accountNumber,
		Name:              strings.TrimSpace(name),
		Description:       description,
		AccountType:       accountType,
		Currency:          cur,
		IsActive:          true,
		IsControlAccount:  isControlAccount,
		ParentAccountID:   parentAccountID,
		CurrentBalance:    valueobject.Zero(cur),
	}
	if parentAccountID != nil && *parentAccountID == account.ID {
		return nil, shared.NewValidationError("account cannot be its own parent").WithCode(CodeInvalidParent)
	}
	// Never updated yet.
	account.UpdatedAt = time.Time{}
	return account, nil
}

// UpdateBalance replaces the running balance
func (a *Account) UpdateBalance(newBalance valueobject.Money) error {
	if newBalance.Currency() != a.Currency {
		return shared.NewStateError("Balance currency %s does not match account currency %s", newBalance.Currency(), a.Currency)
	}
	a.CurrentBalance = newBalance
	a.touch()
	return nil
}

// ApplyBalanceChange adds a signed amount to the running balance
func (a *Account) ApplyBalanceChange(change valueobject.Money) error {
	newBalance, err := a.CurrentBalance.Add(change)
	if err != nil {
		return err
	}
	return a.UpdateBalance(newBalance)
}

// Activate marks the account usable again
func (a *Account) Activate() {
	a.IsActive = true
	a.touch()
}

// Deactivate soft-deletes the account. Outstanding balances are not checked.
func (a *Account) Deactivate() {
	a.IsActive = false
	a.touch()
}

// UpdateInfo changes the descriptive fields of the account
func (a *Account) UpdateInfo(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewValidationError("account name cannot be empty")
	}
	a.Name = strings.TrimSpace(name)
	a.Description = description
	a.touch()
	return nil
}

// NormalBalanceSide returns the side on which this account's type normally carries its balance
func (a *Account) NormalBalanceSide() DebitCreditIndicator {
	return a.AccountType.NormalBalance()
}

// CanHaveChildren reports whether other accounts may be placed under this one
func (a *Account) CanHaveChildren() bool {
	return a.IsControlAccount
}

// CanBeUsedInTransactions reports whether line items may reference this account
func (a *Account) CanBeUsedInTransactions() bool {
	return a.IsActive && !a.IsControlAccount
}

// HasBeenUpdated reports whether UpdatedAt carries a real timestamp
func (a *Account) HasBeenUpdated() bool {
	return !a.UpdatedAt.IsZero()
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}
