package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerStatsProvider implements LedgerStatsProvider using GORM.
// It queries the journal_entries projection directly for aggregated metrics.
type GormLedgerStatsProvider struct {
	db *gorm.DB
}

// NewGormLedgerStatsProvider creates a new GormLedgerStatsProvider.
func NewGormLedgerStatsProvider(db *gorm.DB) *GormLedgerStatsProvider {
	return &GormLedgerStatsProvider{db: db}
}

// CountUnposted returns the number of journal entries that have not been posted.
func (p *GormLedgerStatsProvider) CountUnposted(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("journal_entries").
		Where("is_posted = ?", false).
		Count(&count).Error
	return count, err
}

var _ LedgerStatsProvider = (*GormLedgerStatsProvider)(nil)
