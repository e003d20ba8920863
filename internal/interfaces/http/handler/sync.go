package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellerbridge/backend/internal/application/sync"
	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// CatalogSyncer is the slice of the sync pipeline the HTTP layer drives
type CatalogSyncer interface {
	SyncAll(ctx context.Context, integrationID uuid.UUID) (sync.Summary, error)
	SyncOne(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error)
}

// SyncHandler handles catalog sync API endpoints
type SyncHandler struct {
	BaseHandler
	integrations marketplace.IntegrationRepository
	syncer       CatalogSyncer
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(integrations marketplace.IntegrationRepository, syncer CatalogSyncer) *SyncHandler {
	return &SyncHandler{integrations: integrations, syncer: syncer}
}

// Run triggers a full catalog sync for the tenant's active integration and
// returns the run summary. Per-item failures are counted, not raised, so the
// response is 200 even when some items failed.
// POST /api/v1/sync/run
func (h *SyncHandler) Run(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	ctx := c.Request.Context()
	integ, err := h.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.syncer.SyncAll(ctx, integ.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// SyncItem refreshes a single listing from the platform.
// POST /api/v1/sync/items/:external_item_id
func (h *SyncHandler) SyncItem(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	externalItemID := c.Param("external_item_id")
	if externalItemID == "" {
		h.BadRequest(c, "external_item_id is required")
		return
	}

	ctx := c.Request.Context()
	integ, err := h.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	item, err := h.syncer.SyncOne(ctx, integ.ID, externalItemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToCatalogItemResponse(item))
}
