package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerbridge/backend/internal/application/sync"
	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/interfaces/http/middleware"
)

type stubIntegrationRepo struct {
	integration *marketplace.Integration
	err         error
}

func (r *stubIntegrationRepo) FindByID(context.Context, uuid.UUID) (*marketplace.Integration, error) {
	return r.integration, r.err
}

func (r *stubIntegrationRepo) FindActiveByTenant(context.Context, uuid.UUID) (*marketplace.Integration, error) {
	return r.integration, r.err
}

func (r *stubIntegrationRepo) FindByExternalAccount(context.Context, string) (*marketplace.Integration, error) {
	return r.integration, r.err
}

func (r *stubIntegrationRepo) Save(context.Context, *marketplace.Integration) error { return nil }

func (r *stubIntegrationRepo) UpdateStatus(context.Context, uuid.UUID, marketplace.IntegrationStatus) error {
	return nil
}

func (r *stubIntegrationRepo) UpdateLastFullSync(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type stubSyncer struct {
	summary sync.Summary
	item    *marketplace.CatalogItem
	err     error
}

func (s *stubSyncer) SyncAll(context.Context, uuid.UUID) (sync.Summary, error) {
	return s.summary, s.err
}

func (s *stubSyncer) SyncOne(context.Context, uuid.UUID, string) (*marketplace.CatalogItem, error) {
	return s.item, s.err
}

func setupSyncRouter(repo marketplace.IntegrationRepository, syncer CatalogSyncer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSyncHandler(repo, syncer)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, uuid.New().String())
		c.Next()
	})
	router.POST("/sync/run", h.Run)
	router.POST("/sync/items/:external_item_id", h.SyncItem)
	return router
}

func activeIntegration() *marketplace.Integration {
	return marketplace.NewIntegration(
		uuid.New(), "42", "enc-access", "enc-refresh",
		time.Now().Add(6*time.Hour), []string{"read", "offline_access"})
}

func TestSyncRun_ReturnsSummary(t *testing.T) {
	repo := &stubIntegrationRepo{integration: activeIntegration()}
	syncer := &stubSyncer{summary: sync.Summary{Synced: 48, Failed: 2, Total: 50}}
	router := setupSyncRouter(repo, syncer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/run", nil)
	router.ServeHTTP(w, req)

	// Partial failure is still a 200 with counts in the body
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"synced":48`)
	assert.Contains(t, w.Body.String(), `"failed":2`)
	assert.Contains(t, w.Body.String(), `"total":50`)
}

func TestSyncRun_NoActiveIntegration(t *testing.T) {
	repo := &stubIntegrationRepo{err: marketplace.ErrNoActiveIntegration}
	router := setupSyncRouter(repo, &stubSyncer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/run", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")
}

func TestSyncRun_RevokedIntegration(t *testing.T) {
	repo := &stubIntegrationRepo{integration: activeIntegration()}
	syncer := &stubSyncer{err: marketplace.ErrIntegrationRevoked}
	router := setupSyncRouter(repo, syncer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/run", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INTEGRATION_REVOKED")
}

func TestSyncRun_MissingTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSyncHandler(&stubIntegrationRepo{}, &stubSyncer{})
	router := gin.New()
	router.POST("/sync/run", h.Run)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/run", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncItem_ReturnsItem(t *testing.T) {
	repo := &stubIntegrationRepo{integration: activeIntegration()}
	item := &marketplace.CatalogItem{
		ID:             uuid.New(),
		ExternalItemID: "MLA123",
		Title:          "Wireless Mouse",
		Price:          decimal.NewFromFloat(1999.90),
		Currency:       "ARS",
		Status:         marketplace.ItemStatusActive,
		LastSyncedAt:   time.Now(),
	}
	router := setupSyncRouter(repo, &stubSyncer{item: item})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/items/MLA123", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"external_item_id":"MLA123"`)
	assert.Contains(t, w.Body.String(), "Wireless Mouse")
}

func TestSyncItem_NotFoundOnPlatform(t *testing.T) {
	repo := &stubIntegrationRepo{integration: activeIntegration()}
	router := setupSyncRouter(repo, &stubSyncer{err: marketplace.ErrItemNotFound})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/items/MLA999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncItem_UpstreamFailure(t *testing.T) {
	repo := &stubIntegrationRepo{integration: activeIntegration()}
	router := setupSyncRouter(repo, &stubSyncer{err: marketplace.ErrTransientNetwork})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/sync/items/MLA123", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UPSTREAM")
}
