package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements marketplace.IntegrationRepository using GORM
type GormIntegrationRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

// FindByID finds an integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTenant finds the tenant's single non-revoked integration
func (r *GormIntegrationRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*marketplace.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status <> ?", tenantID, string(marketplace.IntegrationStatusRevoked)).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrNoActiveIntegration
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalAccount resolves the integration a webhook's user_id belongs
// to. Revoked integrations are excluded so trailing deliveries after a
// disconnect fall through to skipped.
func (r *GormIntegrationRepository) FindByExternalAccount(ctx context.Context, externalAccountID string) (*marketplace.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("external_account_id = ? AND status <> ?", externalAccountID, string(marketplace.IntegrationStatusRevoked)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrIntegrationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save inserts or fully updates an integration
func (r *GormIntegrationRepository) Save(ctx context.Context, integration *marketplace.Integration) error {
	model := models.IntegrationModelFromDomain(integration)
	return r.db.WithContext(ctx).Save(model).Error
}

// UpdateStatus updates only the lifecycle status column
func (r *GormIntegrationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status marketplace.IntegrationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return marketplace.ErrIntegrationNotFound
	}
	return nil
}

// UpdateLastFullSync records the completion timestamp of a full sync run
func (r *GormIntegrationRepository) UpdateLastFullSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_full_sync_at": at,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return marketplace.ErrIntegrationNotFound
	}
	return nil
}

var _ marketplace.IntegrationRepository = (*GormIntegrationRepository)(nil)
