package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// In-memory repositories backing the handler tests

type memoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*ledger.Account
	postings map[uuid.UUID]ledger.AccountPosting
}

func newMemoryAccountRepository() *memoryAccountRepository {
	return &memoryAccountRepository{
		accounts: make(map[uuid.UUID]*ledger.Account),
		postings: make(map[uuid.UUID]ledger.AccountPosting),
	}
}

func (m *memoryAccountRepository) FindByID(_ context.Context, id uuid.UUID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id], nil
}

func (m *memoryAccountRepository) FindByNumber(_ context.Context, number string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.AccountNumber == number {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memoryAccountRepository) FindAll(_ context.Context, activeOnly bool) ([]*ledger.Account, error) {
	return m.filter(func(a *ledger.Account) bool { return !activeOnly || a.IsActive }), nil
}

func (m *memoryAccountRepository) FindByType(_ context.Context, t ledger.AccountType, activeOnly bool) ([]*ledger.Account, error) {
	return m.filter(func(a *ledger.Account) bool {
		return a.AccountType == t && (!activeOnly || a.IsActive)
	}), nil
}

func (m *memoryAccountRepository) FindChildren(_ context.Context, parentID uuid.UUID) ([]*ledger.Account, error) {
	return m.filter(func(a *ledger.Account) bool {
		return a.ParentAccountID != nil && *a.ParentAccountID == parentID
	}), nil
}

func (m *memoryAccountRepository) FindHierarchy(ctx context.Context, id uuid.UUID) ([]*ledger.Account, error) {
	return ledger.WalkHierarchy(ctx, m, id, ledger.DefaultMaxHierarchyDepth)
}

func (m *memoryAccountRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	a, _ := m.FindByNumber(ctx, number)
	return a != nil, nil
}

func (m *memoryAccountRepository) Save(_ context.Context, account *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *memoryAccountRepository) Update(_ context.Context, account *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account.IncrementVersion()
	m.accounts[account.ID] = account
	return nil
}

func (m *memoryAccountRepository) SaveBalanceUpdate(ctx context.Context, account *ledger.Account, posting ledger.AccountPosting) error {
	m.mu.Lock()
	if _, ok := m.postings[posting.LineItemID]; ok {
		m.mu.Unlock()
		return shared.NewConflictError("posting %s already applied", posting.LineItemID)
	}
	m.postings[posting.LineItemID] = posting
	m.mu.Unlock()
	return m.Update(ctx, account)
}

func (m *memoryAccountRepository) IsPostingApplied(_ context.Context, lineItemID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.postings[lineItemID]
	return ok, nil
}

func (m *memoryAccountRepository) filter(keep func(*ledger.Account) bool) []*ledger.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*ledger.Account, 0)
	for _, a := range m.accounts {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountNumber < result[j].AccountNumber })
	return result
}

type memoryJournalEntryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*ledger.JournalEntry
	seq     int64
}

func newMemoryJournalEntryRepository() *memoryJournalEntryRepository {
	return &memoryJournalEntryRepository{entries: make(map[uuid.UUID]*ledger.JournalEntry)}
}

func (m *memoryJournalEntryRepository) FindByID(_ context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id], nil
}

func (m *memoryJournalEntryRepository) FindByNumber(_ context.Context, number string) (*ledger.JournalEntry, error) {
	found := m.filter(func(je *ledger.JournalEntry) bool { return je.JournalEntryNumber == number })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (m *memoryJournalEntryRepository) FindByPostingDateRange(_ context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool {
		return !je.PostingDate.Before(from) && !je.PostingDate.After(to)
	}), nil
}

func (m *memoryJournalEntryRepository) FindByAccount(_ context.Context, accountID uuid.UUID) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool { return je.ReferencesAccount(accountID) }), nil
}

func (m *memoryJournalEntryRepository) FindUnposted(_ context.Context) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool { return !je.IsPosted }), nil
}

func (m *memoryJournalEntryRepository) FindPostedByPeriod(_ context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool {
		return je.IsPosted && !je.PostingDate.Before(from) && !je.PostingDate.After(to)
	}), nil
}

func (m *memoryJournalEntryRepository) FindByReference(_ context.Context, reference string) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool { return je.Reference == reference }), nil
}

func (m *memoryJournalEntryRepository) FindByCreatedBy(_ context.Context, createdBy string) ([]*ledger.JournalEntry, error) {
	return m.filter(func(je *ledger.JournalEntry) bool { return je.CreatedBy == createdBy }), nil
}

func (m *memoryJournalEntryRepository) FindAll(_ context.Context, f ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	all := m.filter(func(je *ledger.JournalEntry) bool {
		if f.IsPosted != nil && je.IsPosted != *f.IsPosted {
			return false
		}
		if f.Reference != "" && je.Reference != f.Reference {
			return false
		}
		if f.CreatedBy != "" && je.CreatedBy != f.CreatedBy {
			return false
		}
		return true
	})
	return all, int64(len(all)), nil
}

func (m *memoryJournalEntryRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	je, _ := m.FindByNumber(ctx, number)
	return je != nil, nil
}

func (m *memoryJournalEntryRepository) Save(_ context.Context, entry *ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; ok {
		return shared.NewConflictError("stream %s already exists", entry.ID)
	}
	entry.MarkCommitted()
	m.entries[entry.ID] = entry
	return nil
}

func (m *memoryJournalEntryRepository) Update(_ context.Context, entry *ledger.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.MarkCommitted()
	m.entries[entry.ID] = entry
	return nil
}

func (m *memoryJournalEntryRepository) NextEntryNumber(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return ledger.FormatEntryNumber(m.seq), nil
}

func (m *memoryJournalEntryRepository) filter(keep func(*ledger.JournalEntry) bool) []*ledger.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*ledger.JournalEntry, 0)
	for _, je := range m.entries {
		if keep(je) {
			result = append(result, je)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JournalEntryNumber > result[j].JournalEntryNumber })
	return result
}

var (
	_ ledger.AccountRepository      = (*memoryAccountRepository)(nil)
	_ ledger.JournalEntryRepository = (*memoryJournalEntryRepository)(nil)
)
