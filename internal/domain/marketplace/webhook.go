package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// WebhookTopic identifies the resource family a notification refers to
type WebhookTopic string

const (
	WebhookTopicOrders    WebhookTopic = "orders"
	WebhookTopicItems     WebhookTopic = "items"
	WebhookTopicQuestions WebhookTopic = "questions"
	WebhookTopicClaims    WebhookTopic = "claims"
)

// WebhookOutcome is the terminal result of processing one delivery
type WebhookOutcome string

const (
	WebhookOutcomeSuccess          WebhookOutcome = "success"
	WebhookOutcomeError            WebhookOutcome = "error"
	WebhookOutcomeSkipped          WebhookOutcome = "skipped"
	WebhookOutcomeAlreadyProcessed WebhookOutcome = "already_processed"
)

// WebhookNotification is the log row for one delivery attempt. NotificationID
// is globally unique and is the idempotency anchor: the unique constraint on
// it resolves races between concurrent redeliveries.
type WebhookNotification struct {
	ID             uuid.UUID
	NotificationID string
	Topic          WebhookTopic
	Resource       string
	ExternalUserID int64
	ApplicationID  int64
	Attempts       int
	SentAt         *time.Time
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
	Outcome        WebhookOutcome
	ErrorDetail    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewWebhookNotification creates the log row for an inbound delivery before
// any handler runs. Outcome is filled in when the state machine finishes.
func NewWebhookNotification(notificationID string, topic WebhookTopic, resource string, externalUserID, applicationID int64, attempts int, sentAt *time.Time) *WebhookNotification {
	now := time.Now()
	return &WebhookNotification{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Topic:          topic,
		Resource:       resource,
		ExternalUserID: externalUserID,
		ApplicationID:  applicationID,
		Attempts:       attempts,
		SentAt:         sentAt,
		ReceivedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Finish records the terminal outcome and processing timestamp.
func (n *WebhookNotification) Finish(outcome WebhookOutcome, errDetail string) {
	now := time.Now()
	n.Outcome = outcome
	n.ErrorDetail = errDetail
	n.ProcessedAt = &now
	n.UpdatedAt = now
}
