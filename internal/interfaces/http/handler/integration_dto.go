package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// ConnectRequest carries the OAuth authorization code for the exchange
type ConnectRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required,url"`
}

// IntegrationResponse represents an integration in API responses.
// Token material never leaves the persistence layer.
type IntegrationResponse struct {
	ID                uuid.UUID  `json:"id"`
	ExternalAccountID string     `json:"external_account_id"`
	Status            string     `json:"status"`
	Scopes            []string   `json:"scopes"`
	TokenExpiresAt    time.Time  `json:"token_expires_at"`
	LastFullSyncAt    *time.Time `json:"last_full_sync_at,omitempty"`
	ConnectedAt       time.Time  `json:"connected_at"`
}

// ToIntegrationResponse converts a domain integration to its API shape
func ToIntegrationResponse(integ *marketplace.Integration) IntegrationResponse {
	return IntegrationResponse{
		ID:                integ.ID,
		ExternalAccountID: integ.ExternalAccountID,
		Status:            string(integ.Status),
		Scopes:            integ.Scopes,
		TokenExpiresAt:    integ.TokenExpiresAt,
		LastFullSyncAt:    integ.LastFullSyncAt,
		ConnectedAt:       integ.CreatedAt,
	}
}

// CatalogItemResponse represents a synced listing in API responses
type CatalogItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	ExternalItemID    string          `json:"external_item_id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	AvailableQuantity int             `json:"available_quantity"`
	SoldQuantity      int             `json:"sold_quantity"`
	Status            string          `json:"status"`
	CategoryID        string          `json:"category_id,omitempty"`
	Permalink         string          `json:"permalink,omitempty"`
	LastSyncedAt      time.Time       `json:"last_synced_at"`
}

// ToCatalogItemResponse converts a domain catalog item to its API shape
func ToCatalogItemResponse(item *marketplace.CatalogItem) CatalogItemResponse {
	return CatalogItemResponse{
		ID:                item.ID,
		ExternalItemID:    item.ExternalItemID,
		Title:             item.Title,
		Price:             item.Price,
		Currency:          item.Currency,
		AvailableQuantity: item.AvailableQuantity,
		SoldQuantity:      item.SoldQuantity,
		Status:            string(item.Status),
		CategoryID:        item.CategoryID,
		Permalink:         item.Permalink,
		LastSyncedAt:      item.LastSyncedAt,
	}
}

// ToCatalogItemResponses converts a slice of domain items
func ToCatalogItemResponses(items []marketplace.CatalogItem) []CatalogItemResponse {
	out := make([]CatalogItemResponse, len(items))
	for i := range items {
		out[i] = ToCatalogItemResponse(&items[i])
	}
	return out
}

// SyncLogEntryResponse represents one audit log entry in API responses
type SyncLogEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Operation string    `json:"operation"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToSyncLogEntryResponses converts domain audit entries to their API shape
func ToSyncLogEntryResponses(entries []marketplace.SyncLogEntry) []SyncLogEntryResponse {
	out := make([]SyncLogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = SyncLogEntryResponse{
			ID:        e.ID,
			Operation: e.Operation,
			Outcome:   string(e.Outcome),
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
