package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/persistence/models"
)

// statusPriorityOrder ranks listings actionable-first for listing pages.
// Portable CASE expression so sqlite-backed tests order identically to
// postgres.
const statusPriorityOrder = "CASE status " +
	"WHEN 'active' THEN 0 " +
	"WHEN 'paused' THEN 1 " +
	"WHEN 'closed' THEN 2 " +
	"ELSE 3 END, title ASC"

// GormCatalogItemRepository implements marketplace.CatalogItemRepository using GORM
type GormCatalogItemRepository struct {
	db *gorm.DB
}

// NewGormCatalogItemRepository creates a new GormCatalogItemRepository
func NewGormCatalogItemRepository(db *gorm.DB) *GormCatalogItemRepository {
	return &GormCatalogItemRepository{db: db}
}

// Upsert inserts the item or, when the natural key already exists, updates
// the listing columns in place. Re-applying an unchanged item never creates
// a second row.
func (r *GormCatalogItemRepository) Upsert(ctx context.Context, item *marketplace.CatalogItem) error {
	model := models.CatalogItemModelFromDomain(item)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "integration_id"}, {Name: "external_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "price", "currency", "available_quantity", "sold_quantity",
				"status", "category_id", "permalink", "raw_payload",
				"last_synced_at", "updated_at",
			}),
		}).
		Create(model).Error
}

// FindByNaturalKey finds one item by (integration id, external item id)
func (r *GormCatalogItemRepository) FindByNaturalKey(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error) {
	var model models.CatalogItemModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND external_item_id = ?", integrationID, externalItemID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns the integration's items ordered by status priority then title
func (r *GormCatalogItemRepository) List(ctx context.Context, integrationID uuid.UUID, filter marketplace.CatalogItemFilter) ([]marketplace.CatalogItem, error) {
	query := r.db.WithContext(ctx).
		Model(&models.CatalogItemModel{}).
		Where("integration_id = ?", integrationID).
		Order(statusPriorityOrder)

	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var modelRows []models.CatalogItemModel
	if err := query.Find(&modelRows).Error; err != nil {
		return nil, err
	}

	items := make([]marketplace.CatalogItem, 0, len(modelRows))
	for i := range modelRows {
		items = append(items, *modelRows[i].ToDomain())
	}
	return items, nil
}

// Count returns the number of local catalog rows for the integration
func (r *GormCatalogItemRepository) Count(ctx context.Context, integrationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CatalogItemModel{}).
		Where("integration_id = ?", integrationID).
		Count(&count).Error
	return count, err
}

// GetCatalogSizes returns the stored item count per integration. Feeds the
// periodic catalog size gauge.
func (r *GormCatalogItemRepository) GetCatalogSizes(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		IntegrationID uuid.UUID
		Count         int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.CatalogItemModel{}).
		Select("integration_id, COUNT(*) AS count").
		Group("integration_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	sizes := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		sizes[row.IntegrationID] = row.Count
	}
	return sizes, nil
}

var _ marketplace.CatalogItemRepository = (*GormCatalogItemRepository)(nil)
