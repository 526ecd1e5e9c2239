package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db                *gorm.DB
	outboxSaver       shared.OutboxEventSaver // optional, for transactional outbox pattern
	maxHierarchyDepth int
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db, maxHierarchyDepth: ledger.DefaultMaxHierarchyDepth}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormAccountRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// SetMaxHierarchyDepth bounds FindHierarchy walks
func (r *GormAccountRepository) SetMaxHierarchyDepth(depth int) {
	if depth > 0 {
		r.maxHierarchyDepth = depth
	}
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an account by its chart-of-accounts number
func (r *GormAccountRepository) FindByNumber(ctx context.Context, accountNumber string) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("account_number = ?", accountNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists accounts ordered by account number
func (r *GormAccountRepository) FindAll(ctx context.Context, activeOnly bool) ([]*ledger.Account, error) {
	query := r.db.WithContext(ctx).Model(&models.AccountModel{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return r.findAccounts(query)
}

// FindByType lists accounts of one type ordered by account number
func (r *GormAccountRepository) FindByType(ctx context.Context, accountType ledger.AccountType, activeOnly bool) ([]*ledger.Account, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("account_type = ?", accountType)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return r.findAccounts(query)
}

// FindChildren lists the direct children of a control account
func (r *GormAccountRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]*ledger.Account, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("parent_account_id = ?", parentID)
	return r.findAccounts(query)
}

// FindHierarchy returns the ancestors of id and the account itself, root first
func (r *GormAccountRepository) FindHierarchy(ctx context.Context, id uuid.UUID) ([]*ledger.Account, error) {
	return ledger.WalkHierarchy(ctx, r, id, r.maxHierarchyDepth)
}

// ExistsByNumber checks if an account number is already in use
func (r *GormAccountRepository) ExistsByNumber(ctx context.Context, accountNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("account_number = ?", accountNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a new account
func (r *GormAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	model := models.AccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("account number %s already exists", account.AccountNumber).
				WithCode(shared.CodeAlreadyExists)
		}
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// Update writes the account if its version is unchanged since it was loaded
func (r *GormAccountRepository) Update(ctx context.Context, account *ledger.Account) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.updateWithVersion(tx, account); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, account)
	})
	if err != nil {
		return err
	}
	account.IncrementVersion()
	account.ClearDomainEvents()
	return nil
}

// SaveBalanceUpdate records the posting and writes the account in one transaction.
// The posting insert runs first so a redelivered line item never reaches the balance.
func (r *GormAccountRepository) SaveBalanceUpdate(ctx context.Context, account *ledger.Account, posting ledger.AccountPosting) error {
	if posting.AccountID != account.ID {
		return shared.NewValidationError("posting for account %s cannot be applied to account %s",
			posting.AccountID, account.ID)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.AccountPostingModelFromDomain(posting)).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewConflictError("line item %s has already been applied", posting.LineItemID)
			}
			return fmt.Errorf("failed to record account posting: %w", err)
		}
		if err := r.updateWithVersion(tx, account); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, account)
	})
	if err != nil {
		return err
	}
	account.IncrementVersion()
	account.ClearDomainEvents()
	return nil
}

// IsPostingApplied reports whether the line item has already been applied
func (r *GormAccountRepository) IsPostingApplied(ctx context.Context, lineItemID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AccountPostingModel{}).
		Where("line_item_id = ?", lineItemID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// updateWithVersion bumps the stored version by one. The caller advances the
// in-memory version after the surrounding transaction commits.
func (r *GormAccountRepository) updateWithVersion(tx *gorm.DB, account *ledger.Account) error {
	var updatedAt *time.Time
	if account.HasBeenUpdated() {
		t := account.UpdatedAt
		updatedAt = &t
	}

	result := tx.Model(&models.AccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"name":               account.Name,
			"description":        account.Description,
			"is_active":          account.IsActive,
			"is_control_account": account.IsControlAccount,
			"parent_account_id":  account.ParentAccountID,
			"balance_amount":     account.CurrentBalance.Amount(),
			"version":            account.Version + 1,
			"updated_at":         updatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("account %s was modified by another process", account.AccountNumber)
	}
	return nil
}

func (r *GormAccountRepository) saveEvents(ctx context.Context, tx *gorm.DB, account *ledger.Account) error {
	events := account.GetDomainEvents()
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

func (r *GormAccountRepository) findAccounts(query *gorm.DB) ([]*ledger.Account, error) {
	var rows []models.AccountModel
	if err := query.Order("account_number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]*ledger.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, nil
}

// Ensure GormAccountRepository implements ledger.AccountRepository
var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
