package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
	"github.com/sellerbridge/backend/internal/interfaces/http/middleware"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDKey); id != "" {
		return id
	}
	return ""
}

// getTenantID extracts the tenant ID resolved by the tenant middleware
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantID, err := middleware.GetTenantUUID(c)
	if err != nil {
		return uuid.Nil, err
	}
	if tenantID == uuid.Nil {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return tenantID, nil
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	statusCode := dto.GetHTTPStatus(code)
	h.Error(c, statusCode, code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	requestID := getRequestID(c)
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	))
}

// HandleError maps domain errors to HTTP responses. Errors are matched with
// errors.Is so wrapped errors resolve to the same status.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, marketplace.ErrIntegrationNotFound),
		errors.Is(err, marketplace.ErrNoActiveIntegration):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "No marketplace integration found")
	case errors.Is(err, marketplace.ErrItemNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Item not found on the platform")
	case errors.Is(err, marketplace.ErrNotificationNotFound):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "Notification not found")
	case errors.Is(err, marketplace.ErrIntegrationConflict):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "Tenant already has an active integration")
	case errors.Is(err, marketplace.ErrIntegrationRevoked),
		errors.Is(err, marketplace.ErrAuthRevoked):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeIntegrationRevoked,
			"Marketplace authorization has been revoked, reconnect the integration")
	case errors.Is(err, marketplace.ErrRateLimited):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstream, "The platform is rate limiting requests")
	case errors.Is(err, marketplace.ErrTransientNetwork),
		errors.Is(err, marketplace.ErrInvalidResponse),
		errors.Is(err, marketplace.ErrAuthExpired):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstream, "The platform request failed")
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
