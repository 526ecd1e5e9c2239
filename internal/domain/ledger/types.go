package ledger

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
)

// Aggregate type names used in event envelopes
const (
	AggregateTypeAccount      = "Account"
	AggregateTypeJournalEntry = "JournalEntry"
)

// Error codes specific to the ledger context
const (
	CodeAlreadyPosted        = "ALREADY_POSTED"
	CodeNotBalanced          = "NOT_BALANCED"
	CodeNoLineItems          = "NO_LINE_ITEMS"
	CodeTooFewLineItems      = "TOO_FEW_LINE_ITEMS"
	CodeAccountNotUsable     = "ACCOUNT_NOT_USABLE"
	CodeInvalidParent        = "INVALID_PARENT"
	CodeInvalidAccountNumber = "INVALID_ACCOUNT_NUMBER"
	CodeHierarchyCycle       = "HIERARCHY_CYCLE"
	CodeHierarchyTooDeep     = "HIERARCHY_TOO_DEEP"
)

// AccountType represents the classification of an account
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// NormalBalance returns the side on which the account type normally carries its balance
func (t AccountType) NormalBalance() DebitCreditIndicator {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return Debit
	default:
		return Credit
	}
}

// ParseAccountType parses an account type case-insensitively
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewValidationError("invalid account type %q", s)
	}
	return t, nil
}

// AllAccountTypes returns every account type in chart order
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeAsset,
		AccountTypeLiability,
		AccountTypeEquity,
		AccountTypeRevenue,
		AccountTypeExpense,
	}
}

// DebitCreditIndicator says which side of the ledger a line item lands on
type DebitCreditIndicator string

const (
	Debit  DebitCreditIndicator = "DEBIT"
	Credit DebitCreditIndicator = "CREDIT"
)

// IsValid checks if the indicator is Debit or Credit
func (d DebitCreditIndicator) IsValid() bool {
	return d == Debit || d == Credit
}

// String returns the string representation of DebitCreditIndicator
func (d DebitCreditIndicator) String() string {
	return string(d)
}

// ParseDebitCreditIndicator parses an indicator case-insensitively
func ParseDebitCreditIndicator(s string) (DebitCreditIndicator, error) {
	d := DebitCreditIndicator(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", shared.NewValidationError("invalid debit/credit indicator %q", s)
	}
	return d, nil
}
