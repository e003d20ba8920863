package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellerbridge/backend/internal/application/integration"
	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
	"github.com/sellerbridge/backend/internal/interfaces/http/middleware"
)

// defaultHistoryLimit caps the sync history listing when no limit is given
const defaultHistoryLimit = 20

// IntegrationManager is the slice of the integration service the HTTP
// layer drives
type IntegrationManager interface {
	Connect(ctx context.Context, tenantID uuid.UUID, code, redirectURI string) (*marketplace.Integration, error)
	GetCurrent(ctx context.Context, tenantID uuid.UUID) (*integration.Overview, error)
	Disconnect(ctx context.Context, tenantID uuid.UUID) error
	ListItems(ctx context.Context, tenantID uuid.UUID, filter marketplace.CatalogItemFilter) ([]marketplace.CatalogItem, error)
	SyncHistory(ctx context.Context, tenantID uuid.UUID, limit int) ([]marketplace.SyncLogEntry, error)
}

// IntegrationHandler handles the integration lifecycle API endpoints
type IntegrationHandler struct {
	BaseHandler
	service IntegrationManager
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(service IntegrationManager) *IntegrationHandler {
	return &IntegrationHandler{service: service}
}

// Connect exchanges an OAuth authorization code and links the tenant's
// seller account. POST /api/v1/integrations/connect
func (h *IntegrationHandler) Connect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	integ, err := h.service.Connect(c.Request.Context(), tenantID, req.Code, req.RedirectURI)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ToIntegrationResponse(integ))
}

// GetCurrent returns the tenant's integration overview.
// GET /api/v1/integrations/current
func (h *IntegrationHandler) GetCurrent(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	overview, err := h.service.GetCurrent(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, overview)
}

// Disconnect severs the tenant's marketplace link.
// DELETE /api/v1/integrations/current
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), tenantID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListItems returns the tenant's synced catalog items.
// GET /api/v1/integrations/current/items
func (h *IntegrationHandler) ListItems(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := marketplace.CatalogItemFilter{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.Status != "" {
		status := marketplace.ItemStatus(req.Status)
		filter.Status = &status
	}

	items, err := h.service.ListItems(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToCatalogItemResponses(items))
}

// SyncHistory returns the most recent sync audit entries, newest first.
// GET /api/v1/integrations/current/sync-history
func (h *IntegrationHandler) SyncHistory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	entries, err := h.service.SyncHistory(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ToSyncLogEntryResponses(entries))
}
