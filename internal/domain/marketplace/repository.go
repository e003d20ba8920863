package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IntegrationRepository persists Integration aggregates
type IntegrationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	// FindActiveByTenant returns the tenant's single active integration or
	// ErrNoActiveIntegration.
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*Integration, error)
	// FindByExternalAccount resolves the integration a webhook's user_id
	// belongs to. Revoked integrations are excluded.
	FindByExternalAccount(ctx context.Context, externalAccountID string) (*Integration, error)
	Save(ctx context.Context, integration *Integration) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status IntegrationStatus) error
	UpdateLastFullSync(ctx context.Context, id uuid.UUID, at time.Time) error
}

// CatalogItemFilter narrows catalog listings
type CatalogItemFilter struct {
	Status *ItemStatus
	Limit  int
	Offset int
}

// CatalogItemRepository persists local copies of marketplace listings
type CatalogItemRepository interface {
	// Upsert inserts or updates by the natural key
	// (integration id, external item id). Re-applying the same item must not
	// create a new row.
	Upsert(ctx context.Context, item *CatalogItem) error
	FindByNaturalKey(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*CatalogItem, error)
	// List returns items ordered by status priority then title.
	List(ctx context.Context, integrationID uuid.UUID, filter CatalogItemFilter) ([]CatalogItem, error)
	Count(ctx context.Context, integrationID uuid.UUID) (int64, error)
}

// WebhookLogRepository persists the webhook delivery log
type WebhookLogRepository interface {
	// Create inserts the log row for a new delivery. A unique-constraint
	// violation on notification id returns ErrDuplicateDelivery; the losing
	// insert in a redelivery race resolves to already_processed, not an error.
	Create(ctx context.Context, notification *WebhookNotification) error
	Update(ctx context.Context, notification *WebhookNotification) error
	FindByNotificationID(ctx context.Context, notificationID string) (*WebhookNotification, error)
}

// SyncLogRepository appends audit entries; entries are never read back by the
// core, only by out-of-band alerting and the dashboard collaborator.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	ListByIntegration(ctx context.Context, integrationID uuid.UUID, limit int) ([]SyncLogEntry, error)
}
