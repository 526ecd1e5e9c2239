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
	"gorm.io/gorm/clause"
)

// EventCodec converts domain events to and from their stored payloads.
// event.EventSerializer satisfies it.
type EventCodec interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
	Deserialize(eventType string, data []byte) (shared.DomainEvent, error)
}

// GormJournalEntryRepository implements ledger.JournalEntryRepository as an event store
// (journal_entry_events) plus a projection (journal_entries, journal_entry_line_items)
// written in the same transaction.
type GormJournalEntryRepository struct {
	db          *gorm.DB
	codec       EventCodec
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
	now         func() time.Time
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB, codec EventCodec) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{
		db:    db,
		codec: codec,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormJournalEntryRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID rebuilds a journal entry by replaying its event stream
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	var rows []models.JournalEntryEventModel
	if err := r.db.WithContext(ctx).
		Where("stream_id = ?", id).
		Order("version ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load journal entry stream: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	history := make([]shared.DomainEvent, len(rows))
	for i := range rows {
		if rows[i].Version != i+1 {
			return nil, shared.NewStateError("journal entry stream %s has a gap at version %d", id, i+1)
		}
		event, err := r.codec.Deserialize(rows[i].EventType, rows[i].Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode journal entry event %s: %w", rows[i].ID, err)
		}
		history[i] = event
	}
	return ledger.RehydrateJournalEntry(history)
}

// FindByNumber looks the number up in the projection and replays the stream
func (r *GormJournalEntryRepository) FindByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := r.db.WithContext(ctx).
		Select("id").
		Where("journal_entry_number = ?", number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.FindByID(ctx, model.ID)
}

// FindByPostingDateRange lists entries whose posting date falls within [from, to]
func (r *GormJournalEntryRepository) FindByPostingDateRange(ctx context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	query := r.projection(ctx).
		Where("posting_date >= ? AND posting_date <= ?", ledger.TruncateToDay(from), ledger.TruncateToDay(to))
	return r.findEntries(query)
}

// FindByAccount lists entries with at least one line item on the account
func (r *GormJournalEntryRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.JournalEntry, error) {
	lines := r.db.WithContext(ctx).
		Model(&models.JournalEntryLineItemModel{}).
		Select("journal_entry_id").
		Where("account_id = ?", accountID)
	return r.findEntries(r.projection(ctx).Where("id IN (?)", lines))
}

// FindUnposted lists draft entries
func (r *GormJournalEntryRepository) FindUnposted(ctx context.Context) ([]*ledger.JournalEntry, error) {
	return r.findEntries(r.projection(ctx).Where("is_posted = ?", false))
}

// FindPostedByPeriod lists posted entries whose posting date falls within [from, to]
func (r *GormJournalEntryRepository) FindPostedByPeriod(ctx context.Context, from, to time.Time) ([]*ledger.JournalEntry, error) {
	query := r.projection(ctx).
		Where("is_posted = ?", true).
		Where("posting_date >= ? AND posting_date <= ?", ledger.TruncateToDay(from), ledger.TruncateToDay(to))
	return r.findEntries(query)
}

// FindByReference lists entries carrying the external reference
func (r *GormJournalEntryRepository) FindByReference(ctx context.Context, reference string) ([]*ledger.JournalEntry, error) {
	return r.findEntries(r.projection(ctx).Where("reference = ?", reference))
}

// FindByCreatedBy lists entries created by one user
func (r *GormJournalEntryRepository) FindByCreatedBy(ctx context.Context, createdBy string) ([]*ledger.JournalEntry, error) {
	return r.findEntries(r.projection(ctx).Where("created_by = ?", createdBy))
}

// FindAll returns one page of entries matching the filter and the total match count
func (r *GormJournalEntryRepository) FindAll(ctx context.Context, filter ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	query := r.applyFilterWithoutPagination(r.projection(ctx), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applyOrdering(query, filter.Filter)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.JournalEntryModel
	if err := r.preloadLineItems(query).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainEntries(rows), total, nil
}

// ExistsByNumber checks if a journal entry number is already in use
func (r *GormJournalEntryRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Where("journal_entry_number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save starts a new stream at version 0
func (r *GormJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	if entry.StreamVersion() != 0 {
		return shared.NewStateError("journal entry %s is not new", entry.JournalEntryNumber)
	}
	if len(entry.GetDomainEvents()) == 0 {
		return shared.NewStateError("journal entry %s has no events to save", entry.JournalEntryNumber)
	}
	return r.append(ctx, entry, true)
}

// Update appends the pending events at the entry's stream version
func (r *GormJournalEntryRepository) Update(ctx context.Context, entry *ledger.JournalEntry) error {
	if entry.StreamVersion() == 0 {
		return shared.NewStateError("journal entry %s has not been saved", entry.JournalEntryNumber)
	}
	if len(entry.GetDomainEvents()) == 0 {
		return nil
	}
	return r.append(ctx, entry, false)
}

// NextEntryNumber returns the number following the highest JE-NNNNNN in use
func (r *GormJournalEntryRepository) NextEntryNumber(ctx context.Context) (string, error) {
	var last models.JournalEntryModel
	err := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Select("journal_entry_number").
		Where("journal_entry_number LIKE ?", "JE-%").
		Order("LENGTH(journal_entry_number) DESC").
		Order("journal_entry_number DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	return ledger.NextEntryNumber(last.JournalEntryNumber), nil
}

// append writes the pending events, the projection and the outbox rows in one transaction.
// The in-memory version only advances once the transaction has committed.
func (r *GormJournalEntryRepository) append(ctx context.Context, entry *ledger.JournalEntry, isNew bool) error {
	events := entry.GetDomainEvents()
	expected := entry.StreamVersion()
	newVersion := expected + len(events)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&models.JournalEntryEventModel{}).
			Where("stream_id = ?", entry.ID).
			Count(&current).Error; err != nil {
			return err
		}
		if int(current) != expected {
			return shared.NewConflictError("journal entry %s is at version %d, expected %d",
				entry.JournalEntryNumber, current, expected)
		}

		rows, err := r.eventRows(entry.ID, expected, events)
		if err != nil {
			return err
		}
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewConflictError("journal entry %s was appended to by another process", entry.JournalEntryNumber)
			}
			return fmt.Errorf("failed to append journal entry events: %w", err)
		}

		if isNew {
			err = r.insertProjection(tx, entry, newVersion)
		} else {
			err = r.updateProjection(tx, entry, expected, newVersion)
		}
		if err != nil {
			return err
		}

		if r.outboxSaver != nil {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	entry.MarkCommitted()
	return nil
}

func (r *GormJournalEntryRepository) eventRows(streamID uuid.UUID, expected int, events []shared.DomainEvent) ([]models.JournalEntryEventModel, error) {
	recordedAt := r.now()
	rows := make([]models.JournalEntryEventModel, len(events))
	for i, event := range events {
		payload, err := r.codec.Serialize(event)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", event.EventType(), err)
		}
		schemaVersion := 1
		if versioned, ok := event.(shared.VersionedEvent); ok {
			schemaVersion = versioned.SchemaVersion()
		}
		rows[i] = models.JournalEntryEventModel{
			ID:            event.EventID(),
			StreamID:      streamID,
			Version:       expected + i + 1,
			EventType:     event.EventType(),
			SchemaVersion: schemaVersion,
			Payload:       payload,
			OccurredAt:    event.OccurredAt(),
			RecordedAt:    recordedAt,
		}
	}
	return rows, nil
}

func (r *GormJournalEntryRepository) insertProjection(tx *gorm.DB, entry *ledger.JournalEntry, version int) error {
	model := models.JournalEntryModelFromDomain(entry)
	model.Version = version
	if err := tx.Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError("journal entry number %s already exists", entry.JournalEntryNumber).
				WithCode(shared.CodeAlreadyExists)
		}
		return fmt.Errorf("failed to save journal entry projection: %w", err)
	}
	return nil
}

func (r *GormJournalEntryRepository) updateProjection(tx *gorm.DB, entry *ledger.JournalEntry, expected, version int) error {
	model := models.JournalEntryModelFromDomain(entry)

	result := tx.Model(&models.JournalEntryModel{}).
		Where("id = ? AND version = ?", entry.ID, expected).
		Updates(map[string]interface{}{
			"is_posted":    model.IsPosted,
			"posted_at":    model.PostedAt,
			"posted_by":    model.PostedBy,
			"total_debit":  model.TotalDebit,
			"total_credit": model.TotalCredit,
			"version":      version,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update journal entry projection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("journal entry %s was modified by another process", entry.JournalEntryNumber)
	}

	// Line items are append-only, so existing rows are left as they are.
	if len(model.LineItems) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&model.LineItems).Error; err != nil {
			return fmt.Errorf("failed to save journal entry line items: %w", err)
		}
	}
	return nil
}

func (r *GormJournalEntryRepository) projection(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.JournalEntryModel{})
}

func (r *GormJournalEntryRepository) preloadLineItems(query *gorm.DB) *gorm.DB {
	return query.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_number ASC")
	})
}

// findEntries reads matching projection rows, most recent posting date first
func (r *GormJournalEntryRepository) findEntries(query *gorm.DB) ([]*ledger.JournalEntry, error) {
	var rows []models.JournalEntryModel
	if err := r.preloadLineItems(query).
		Order("posting_date DESC").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainEntries(rows), nil
}

// applyOrdering applies whitelisted ordering, defaulting to newest first
func (r *GormJournalEntryRepository) applyOrdering(query *gorm.DB, filter shared.Filter) *gorm.DB {
	col, ok := journalEntrySortColumns.orderBy(filter.OrderBy, filter.OrderDir)
	if !ok {
		return query.Order("posting_date DESC").Order("created_at DESC")
	}
	return query.Order(col).Order("id ASC")
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormJournalEntryRepository) applyFilterWithoutPagination(query *gorm.DB, filter ledger.JournalEntryFilter) *gorm.DB {
	if filter.FromDate != nil {
		query = query.Where("posting_date >= ?", ledger.TruncateToDay(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("posting_date <= ?", ledger.TruncateToDay(*filter.ToDate))
	}
	if filter.AccountID != nil {
		lines := r.db.Model(&models.JournalEntryLineItemModel{}).
			Select("journal_entry_id").
			Where("account_id = ?", *filter.AccountID)
		query = query.Where("id IN (?)", lines)
	}
	if filter.IsPosted != nil {
		query = query.Where("is_posted = ?", *filter.IsPosted)
	}
	if filter.Reference != "" {
		query = query.Where("reference = ?", filter.Reference)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	return query
}

func toDomainEntries(rows []models.JournalEntryModel) []*ledger.JournalEntry {
	entries := make([]*ledger.JournalEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}

// Ensure GormJournalEntryRepository implements ledger.JournalEntryRepository
var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
