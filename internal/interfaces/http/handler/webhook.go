package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sellerbridge/backend/internal/application/webhook"
	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/interfaces/http/dto"
)

// WebhookProcessor is the slice of the ingestion pipeline the endpoint drives
type WebhookProcessor interface {
	Process(ctx context.Context, n webhook.Notification) marketplace.WebhookOutcome
}

// WebhookHandler handles inbound platform notifications. The contract with
// the platform is asymmetric: a structurally invalid payload gets 400 so the
// platform's retry can surface the defect, everything else gets 200 so a
// failing handler never turns into an unbounded redelivery storm.
type WebhookHandler struct {
	BaseHandler
	processor   WebhookProcessor
	verifyToken string
}

// NewWebhookHandler creates a new WebhookHandler. verifyToken may be empty,
// in which case the GET verification echo accepts any caller.
func NewWebhookHandler(processor WebhookProcessor, verifyToken string) *WebhookHandler {
	return &WebhookHandler{processor: processor, verifyToken: verifyToken}
}

// WebhookAck is the acknowledgement body returned for every accepted delivery
type WebhookAck struct {
	Status         string    `json:"status"`
	ProcessedAt    time.Time `json:"processed_at"`
	NotificationID string    `json:"notification_id"`
}

// Receive ingests one notification delivery.
// POST /webhooks/notifications
func (h *WebhookHandler) Receive(c *gin.Context) {
	var n webhook.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed notification payload")
		return
	}

	if err := n.Validate(); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	outcome := h.processor.Process(c.Request.Context(), n)

	h.Success(c, WebhookAck{
		Status:         string(outcome),
		ProcessedAt:    time.Now().UTC(),
		NotificationID: n.ID,
	})
}

// Verify answers the platform's subscription check by echoing hub.challenge.
// GET /webhooks/notifications
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge := c.Query("hub.challenge")
	if challenge == "" {
		h.BadRequest(c, "hub.challenge is required")
		return
	}

	if h.verifyToken != "" && c.Query("hub.verify_token") != h.verifyToken {
		h.Forbidden(c, "Verification token mismatch")
		return
	}

	c.String(http.StatusOK, challenge)
}
