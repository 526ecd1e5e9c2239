package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateModel holds the columns shared by aggregate tables
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

func aggregateModelOf(root shared.BaseAggregateRoot) AggregateModel {
	return AggregateModel{
		ID:        root.ID,
		CreatedAt: root.CreatedAt,
		UpdatedAt: root.UpdatedAt,
		Version:   root.Version,
	}
}

// root rebuilds the embedded aggregate state; pending events are never persisted here
func (m AggregateModel) root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Version:    m.Version,
	}
}
