package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTenantRouter(cfg TenantMiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TenantMiddlewareWithConfig(cfg))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": GetTenantID(c)})
	}
	router.GET("/items", handler)
	router.GET("/health", handler)
	router.POST("/webhooks/notifications", handler)
	return router
}

func TestTenantMiddleware_ValidHeader(t *testing.T) {
	router := setupTenantRouter(DefaultTenantConfig())
	tenantID := uuid.New().String()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(TenantHeaderKey, tenantID)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tenantID)
}

func TestTenantMiddleware_MissingHeader(t *testing.T) {
	router := setupTenantRouter(DefaultTenantConfig())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_UNAUTHORIZED")
}

func TestTenantMiddleware_InvalidUUID(t *testing.T) {
	router := setupTenantRouter(DefaultTenantConfig())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(TenantHeaderKey, "not-a-uuid")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid tenant ID format")
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	router := setupTenantRouter(DefaultTenantConfig())

	// Health probes carry no tenant header
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Webhook deliveries carry no tenant header either
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/webhooks/notifications", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantMiddleware_Optional(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalTenantMiddleware())
	router.GET("/items", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": GetTenantID(c)})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_id":""`)
}

func TestGetTenantUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tenantID := uuid.New()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(TenantIDKey, tenantID.String())
		c.Next()
	})
	router.GET("/items", func(c *gin.Context) {
		parsed, err := GetTenantUUID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, parsed)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetTenantUUID_Empty(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/items", func(c *gin.Context) {
		parsed, err := GetTenantUUID(c)
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, parsed)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()

	assert.True(t, cfg.Required)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/webhooks")
}
