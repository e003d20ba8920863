package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// IntegrationModel is the persistence model for the Integration aggregate.
// Token columns hold ciphertext only.
type IntegrationModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_integrations_tenant"`
	ExternalAccountID string     `gorm:"type:varchar(64);not null;index:idx_integrations_external_account"`
	AccessTokenEnc    string     `gorm:"type:text;not null;column:access_token_enc"`
	RefreshTokenEnc   string     `gorm:"type:text;not null;column:refresh_token_enc"`
	TokenExpiresAt    time.Time  `gorm:"not null"`
	Status            string     `gorm:"type:varchar(20);not null;index"`
	ScopesJSON        string     `gorm:"type:text;column:scopes"`
	LastFullSyncAt    *time.Time `gorm:""`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration
func (m *IntegrationModel) ToDomain() *marketplace.Integration {
	integ := &marketplace.Integration{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ExternalAccountID: m.ExternalAccountID,
		AccessTokenEnc:    m.AccessTokenEnc,
		RefreshTokenEnc:   m.RefreshTokenEnc,
		TokenExpiresAt:    m.TokenExpiresAt,
		Status:            marketplace.IntegrationStatus(m.Status),
		LastFullSyncAt:    m.LastFullSyncAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}

	if m.ScopesJSON != "" {
		var scopes []string
		if err := json.Unmarshal([]byte(m.ScopesJSON), &scopes); err == nil {
			integ.Scopes = scopes
		}
	}

	return integ
}

// FromDomain populates the persistence model from a domain Integration
func (m *IntegrationModel) FromDomain(i *marketplace.Integration) {
	m.ID = i.ID
	m.TenantID = i.TenantID
	m.ExternalAccountID = i.ExternalAccountID
	m.AccessTokenEnc = i.AccessTokenEnc
	m.RefreshTokenEnc = i.RefreshTokenEnc
	m.TokenExpiresAt = i.TokenExpiresAt
	m.Status = string(i.Status)
	m.LastFullSyncAt = i.LastFullSyncAt
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt

	if len(i.Scopes) > 0 {
		if jsonBytes, err := json.Marshal(i.Scopes); err == nil {
			m.ScopesJSON = string(jsonBytes)
		}
	} else {
		m.ScopesJSON = "[]"
	}
}

// IntegrationModelFromDomain creates a new persistence model from a domain Integration
func IntegrationModelFromDomain(i *marketplace.Integration) *IntegrationModel {
	m := &IntegrationModel{}
	m.FromDomain(i)
	return m
}

// CatalogItemModel is the persistence model for a local catalog copy of a
// marketplace listing. The (integration_id, external_item_id) pair is the
// natural key the sync pipeline upserts on.
type CatalogItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	IntegrationID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_catalog_items_natural_key,priority:1"`
	ExternalItemID    string          `gorm:"type:varchar(64);not null;uniqueIndex:uq_catalog_items_natural_key,priority:2"`
	Title             string          `gorm:"type:varchar(255);not null"`
	Price             decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Currency          string          `gorm:"type:varchar(8)"`
	AvailableQuantity int             `gorm:"not null;default:0"`
	SoldQuantity      int             `gorm:"not null;default:0"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
	CategoryID        string          `gorm:"type:varchar(64)"`
	Permalink         string          `gorm:"type:varchar(512)"`
	RawPayload        string          `gorm:"type:text"`
	LastSyncedAt      time.Time       `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CatalogItemModel) TableName() string {
	return "catalog_items"
}

// ToDomain converts the persistence model to a domain CatalogItem
func (m *CatalogItemModel) ToDomain() *marketplace.CatalogItem {
	return &marketplace.CatalogItem{
		ID:                m.ID,
		IntegrationID:     m.IntegrationID,
		ExternalItemID:    m.ExternalItemID,
		Title:             m.Title,
		Price:             m.Price,
		Currency:          m.Currency,
		AvailableQuantity: m.AvailableQuantity,
		SoldQuantity:      m.SoldQuantity,
		Status:            marketplace.ItemStatus(m.Status),
		CategoryID:        m.CategoryID,
		Permalink:         m.Permalink,
		RawPayload:        m.RawPayload,
		LastSyncedAt:      m.LastSyncedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CatalogItem
func (m *CatalogItemModel) FromDomain(item *marketplace.CatalogItem) {
	m.ID = item.ID
	m.IntegrationID = item.IntegrationID
	m.ExternalItemID = item.ExternalItemID
	m.Title = item.Title
	m.Price = item.Price
	m.Currency = item.Currency
	m.AvailableQuantity = item.AvailableQuantity
	m.SoldQuantity = item.SoldQuantity
	m.Status = string(item.Status)
	m.CategoryID = item.CategoryID
	m.Permalink = item.Permalink
	m.RawPayload = item.RawPayload
	m.LastSyncedAt = item.LastSyncedAt
	m.CreatedAt = item.CreatedAt
	m.UpdatedAt = item.UpdatedAt
}

// CatalogItemModelFromDomain creates a new persistence model from a domain CatalogItem
func CatalogItemModelFromDomain(item *marketplace.CatalogItem) *CatalogItemModel {
	m := &CatalogItemModel{}
	m.FromDomain(item)
	return m
}

// WebhookNotificationModel is the persistence model for the webhook delivery
// log. The unique index on notification_id is the authoritative dedup: the
// losing insert of a redelivery race hits the constraint.
type WebhookNotificationModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	NotificationID string     `gorm:"type:varchar(128);not null;uniqueIndex:uq_webhook_notifications_notification_id"`
	Topic          string     `gorm:"type:varchar(32);not null;index"`
	Resource       string     `gorm:"type:varchar(255);not null"`
	ExternalUserID int64      `gorm:"not null;index"`
	ApplicationID  int64      `gorm:"not null"`
	Attempts       int        `gorm:"not null;default:0"`
	SentAt         *time.Time `gorm:""`
	ReceivedAt     time.Time  `gorm:"not null"`
	ProcessedAt    *time.Time `gorm:""`
	Outcome        string     `gorm:"type:varchar(24)"`
	ErrorDetail    string     `gorm:"type:text"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookNotificationModel) TableName() string {
	return "webhook_notifications"
}

// ToDomain converts the persistence model to a domain WebhookNotification
func (m *WebhookNotificationModel) ToDomain() *marketplace.WebhookNotification {
	return &marketplace.WebhookNotification{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Topic:          marketplace.WebhookTopic(m.Topic),
		Resource:       m.Resource,
		ExternalUserID: m.ExternalUserID,
		ApplicationID:  m.ApplicationID,
		Attempts:       m.Attempts,
		SentAt:         m.SentAt,
		ReceivedAt:     m.ReceivedAt,
		ProcessedAt:    m.ProcessedAt,
		Outcome:        marketplace.WebhookOutcome(m.Outcome),
		ErrorDetail:    m.ErrorDetail,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookNotification
func (m *WebhookNotificationModel) FromDomain(n *marketplace.WebhookNotification) {
	m.ID = n.ID
	m.NotificationID = n.NotificationID
	m.Topic = string(n.Topic)
	m.Resource = n.Resource
	m.ExternalUserID = n.ExternalUserID
	m.ApplicationID = n.ApplicationID
	m.Attempts = n.Attempts
	m.SentAt = n.SentAt
	m.ReceivedAt = n.ReceivedAt
	m.ProcessedAt = n.ProcessedAt
	m.Outcome = string(n.Outcome)
	m.ErrorDetail = n.ErrorDetail
	m.CreatedAt = n.CreatedAt
	m.UpdatedAt = n.UpdatedAt
}

// WebhookNotificationModelFromDomain creates a new persistence model from a domain WebhookNotification
func WebhookNotificationModelFromDomain(n *marketplace.WebhookNotification) *WebhookNotificationModel {
	m := &WebhookNotificationModel{}
	m.FromDomain(n)
	return m
}

// SyncLogModel is the append-only persistence model for sync audit entries
type SyncLogModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	IntegrationID uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_logs_integration"`
	Operation     string    `gorm:"type:varchar(32);not null"`
	Outcome       string    `gorm:"type:varchar(16);not null"`
	Detail        string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry
func (m *SyncLogModel) ToDomain() *marketplace.SyncLogEntry {
	return &marketplace.SyncLogEntry{
		ID:            m.ID,
		IntegrationID: m.IntegrationID,
		Operation:     m.Operation,
		Outcome:       marketplace.SyncOutcome(m.Outcome),
		Detail:        m.Detail,
		CreatedAt:     m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLogEntry
func SyncLogModelFromDomain(e *marketplace.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:            e.ID,
		IntegrationID: e.IntegrationID,
		Operation:     e.Operation,
		Outcome:       string(e.Outcome),
		Detail:        e.Detail,
		CreatedAt:     e.CreatedAt,
	}
}
