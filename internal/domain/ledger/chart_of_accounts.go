package ledger

import (
	"context"
	"regexp"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultMaxHierarchyDepth bounds parent-chain walks when no limit is configured
const DefaultMaxHierarchyDepth = 32

var accountNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)

// AccountFinder loads a single account by id, returning (nil, nil) when absent
type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

// ValidateAccountNumber checks the chart-of-accounts numbering format: 4 to 10 letters or digits
func ValidateAccountNumber(number string) error {
	if !accountNumberPattern.MatchString(number) {
		return shared.NewValidationError("account number %q must be 4-10 letters or digits", number).
			WithCode(CodeInvalidAccountNumber)
	}
	return nil
}

// WalkHierarchy returns the chain of accounts from the root down to id.
// The walk follows parent ids one lookup at a time, stops after maxDepth levels
// and fails on a repeated id. A missing account ends the chain at the last one found.
func WalkHierarchy(ctx context.Context, finder AccountFinder, id uuid.UUID, maxDepth int) ([]*Account, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHierarchyDepth
	}

	visited := make(map[uuid.UUID]struct{})
	chain := make([]*Account, 0, 4)
	next := &id
	for next != nil {
		if _, seen := visited[*next]; seen {
			return nil, shared.NewStateError("account hierarchy contains a cycle at %s", *next).WithCode(CodeHierarchyCycle)
		}
		if len(chain) >= maxDepth {
			return nil, shared.NewStateError("account hierarchy deeper than %d levels", maxDepth).WithCode(CodeHierarchyTooDeep)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		account, err := finder.FindByID(ctx, *next)
		if err != nil {
			return nil, err
		}
		if account == nil {
			break
		}
		visited[*next] = struct{}{}
		chain = append(chain, account)
		next = account.ParentAccountID
	}

	// root first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ValidateParent checks that parent may adopt child: parent must be a control account
// in the same currency, and child must not already be among parent's ancestors.
func ValidateParent(ctx context.Context, finder AccountFinder, child *Account, parent *Account, maxDepth int) error {
	if parent == nil {
		return shared.NewValidationError("parent account does not exist").WithCode(CodeInvalidParent)
	}
	if !parent.CanHaveChildren() {
		return shared.NewValidationError("parent account %s is not a control account", parent.AccountNumber).
			WithCode(CodeInvalidParent)
	}
	if parent.Currency != child.Currency {
		return shared.NewValidationError("parent account currency %s does not match account currency %s",
			parent.Currency, child.Currency).WithCode(CodeInvalidParent)
	}
	if parent.ID == child.ID {
		return shared.NewValidationError("account cannot be its own parent").WithCode(CodeInvalidParent)
	}

	ancestors, err := WalkHierarchy(ctx, finder, parent.ID, maxDepth)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.ID == child.ID {
			return shared.NewValidationError("account %s would become its own ancestor", child.AccountNumber).
				WithCode(CodeInvalidParent)
		}
	}
	return nil
}
