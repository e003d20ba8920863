package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements marketplace.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts an audit entry. Entries are write-once.
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *marketplace.SyncLogEntry) error {
	model := models.SyncLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByIntegration returns the most recent entries first
func (r *GormSyncLogRepository) ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]marketplace.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var modelRows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&modelRows).Error; err != nil {
		return nil, err
	}

	entries := make([]marketplace.SyncLogEntry, 0, len(modelRows))
	for i := range modelRows {
		entries = append(entries, *modelRows[i].ToDomain())
	}
	return entries, nil
}

var _ marketplace.SyncLogRepository = (*GormSyncLogRepository)(nil)
