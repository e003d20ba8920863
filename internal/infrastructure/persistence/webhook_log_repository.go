package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/persistence/models"
)

// GormWebhookLogRepository implements marketplace.WebhookLogRepository using GORM
type GormWebhookLogRepository struct {
	db *gorm.DB
}

// NewGormWebhookLogRepository creates a new GormWebhookLogRepository
func NewGormWebhookLogRepository(db *gorm.DB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Create inserts the delivery log row. When two redeliveries race, exactly one
// insert wins the unique index on notification_id; the loser gets
// ErrDuplicateDelivery. Requires the connection to be opened with
// TranslateError so driver duplicate-key errors surface as
// gorm.ErrDuplicatedKey.
func (r *GormWebhookLogRepository) Create(ctx context.Context, notification *marketplace.WebhookNotification) error {
	model := models.WebhookNotificationModelFromDomain(notification)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", marketplace.ErrDuplicateDelivery, notification.NotificationID)
		}
		return err
	}
	return nil
}

// Update persists the terminal outcome of a processed delivery
func (r *GormWebhookLogRepository) Update(ctx context.Context, notification *marketplace.WebhookNotification) error {
	model := models.WebhookNotificationModelFromDomain(notification)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByNotificationID finds a delivery log row by the platform's id
func (r *GormWebhookLogRepository) FindByNotificationID(ctx context.Context, notificationID string) (*marketplace.WebhookNotification, error) {
	var model models.WebhookNotificationModel
	if err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrNotificationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ marketplace.WebhookLogRepository = (*GormWebhookLogRepository)(nil)
