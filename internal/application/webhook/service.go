package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/cache"
)

// defaultDedupTTL bounds the fast-path duplicate window. The datastore's
// unique constraint handles anything older.
const defaultDedupTTL = 24 * time.Hour

// Notification is the inbound delivery payload as sent by the platform.
type Notification struct {
	ID            string     `json:"_id"`
	Topic         string     `json:"topic"`
	Resource      string     `json:"resource"`
	UserID        int64      `json:"user_id"`
	ApplicationID int64      `json:"application_id"`
	Attempts      int        `json:"attempts"`
	Sent          *time.Time `json:"sent"`
}

// Validate enforces the structural contract. A failing payload is the one
// case the endpoint rejects instead of acknowledging.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return errors.New("notification _id is required")
	}
	if n.Topic == "" {
		return errors.New("notification topic is required")
	}
	if n.Resource == "" {
		return errors.New("notification resource is required")
	}
	if n.UserID == 0 {
		return errors.New("notification user_id is required")
	}
	return nil
}

// ItemSyncer refreshes a single listing from the platform
type ItemSyncer interface {
	SyncOne(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error)
}

// OutcomeRecorder feeds the webhook outcome counter; monitoring the
// error/skipped rates out-of-band replaces per-delivery alerting.
type OutcomeRecorder interface {
	RecordWebhook(ctx context.Context, topic string, outcome marketplace.WebhookOutcome)
}

// Service is the webhook ingestion processor. Every delivery ends in exactly
// one recorded outcome; handler failures are absorbed into the log row so the
// platform never sees an error and never re-delivers a poison message forever.
type Service struct {
	notifications marketplace.WebhookLogRepository
	integrations  marketplace.IntegrationRepository
	syncer        ItemSyncer
	syncLogs      marketplace.SyncLogRepository
	idempotency   cache.IdempotencyStore
	recorder      OutcomeRecorder
	dedupTTL      time.Duration
	logger        *zap.Logger
}

// ServiceConfig contains the dependencies for the webhook processor
type ServiceConfig struct {
	Notifications marketplace.WebhookLogRepository
	Integrations  marketplace.IntegrationRepository
	Syncer        ItemSyncer
	SyncLogs      marketplace.SyncLogRepository
	Idempotency   cache.IdempotencyStore
	Recorder      OutcomeRecorder
	DedupTTL      time.Duration
	Logger        *zap.Logger
}

// NewService creates a webhook ingestion processor
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = defaultDedupTTL
	}
	return &Service{
		notifications: cfg.Notifications,
		integrations:  cfg.Integrations,
		syncer:        cfg.Syncer,
		syncLogs:      cfg.SyncLogs,
		idempotency:   cfg.Idempotency,
		recorder:      cfg.Recorder,
		dedupTTL:      cfg.DedupTTL,
		logger:        cfg.Logger,
	}
}

// Process runs one delivery through the ingestion state machine and returns
// its terminal outcome. It never returns an error: the caller acknowledges
// with HTTP 200 regardless, and failures live in the delivery log.
func (s *Service) Process(ctx context.Context, n Notification) marketplace.WebhookOutcome {
	outcome := s.process(ctx, n)
	if s.recorder != nil {
		s.recorder.RecordWebhook(ctx, n.Topic, outcome)
	}
	return outcome
}

func (s *Service) process(ctx context.Context, n Notification) marketplace.WebhookOutcome {
	// Fast path: a shared SETNX check catches the common immediate
	// redelivery without hitting the datastore's unique constraint. The
	// log stays the authority: an existing mark only short-circuits when
	// the log row it promises is actually there, so a mark that outlived
	// a failed insert (or a crash before it) cannot swallow a redelivery.
	marked := false
	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, n.ID, s.dedupTTL)
		switch {
		case err != nil:
			s.logger.Warn("idempotency fast path unavailable",
				zap.String("notification_id", n.ID), zap.Error(err))
		case fresh:
			marked = true
		default:
			if _, err := s.notifications.FindByNotificationID(ctx, n.ID); err == nil {
				return marketplace.WebhookOutcomeAlreadyProcessed
			} else if errors.Is(err, marketplace.ErrNotificationNotFound) {
				s.logger.Warn("dropping stale idempotency mark with no log row",
					zap.String("notification_id", n.ID))
			}
		}
	}

	record := marketplace.NewWebhookNotification(
		n.ID, marketplace.WebhookTopic(n.Topic), n.Resource,
		n.UserID, n.ApplicationID, n.Attempts, n.Sent)

	if err := s.notifications.Create(ctx, record); err != nil {
		if errors.Is(err, marketplace.ErrDuplicateDelivery) {
			// Losing insert of a redelivery race; the winner owns the row.
			return marketplace.WebhookOutcomeAlreadyProcessed
		}
		// Without a log row the platform's redelivery is the recovery
		// path; release the mark so it isn't short-circuited.
		if marked {
			if unmarkErr := s.idempotency.Unmark(ctx, n.ID); unmarkErr != nil {
				s.logger.Warn("failed to release idempotency mark",
					zap.String("notification_id", n.ID), zap.Error(unmarkErr))
			}
		}
		s.logger.Error("failed to record webhook delivery",
			zap.String("notification_id", n.ID), zap.Error(err))
		return marketplace.WebhookOutcomeError
	}

	outcome, detail := s.dispatch(ctx, n)

	record.Finish(outcome, detail)
	if err := s.notifications.Update(ctx, record); err != nil {
		s.logger.Error("failed to finalize webhook delivery log",
			zap.String("notification_id", n.ID), zap.Error(err))
	}
	return outcome
}

// dispatch routes the delivery by topic. The returned detail is empty unless
// the outcome needs an explanation.
func (s *Service) dispatch(ctx context.Context, n Notification) (marketplace.WebhookOutcome, string) {
	topic := marketplace.WebhookTopic(n.Topic)
	switch topic {
	case marketplace.WebhookTopicItems, marketplace.WebhookTopicOrders,
		marketplace.WebhookTopicQuestions, marketplace.WebhookTopicClaims:
	default:
		// Topics outside the subscription are acknowledged and shelved, not
		// failed: the platform adds topics without notice.
		s.logger.Info("skipping webhook with unhandled topic",
			zap.String("notification_id", n.ID), zap.String("topic", n.Topic))
		return marketplace.WebhookOutcomeSkipped, fmt.Sprintf("unhandled topic %q", n.Topic)
	}

	integ, err := s.integrations.FindByExternalAccount(ctx, strconv.FormatInt(n.UserID, 10))
	if err != nil {
		// Deliveries can trail a disconnect; nothing actionable remains.
		s.logger.Info("skipping webhook for unknown seller account",
			zap.String("notification_id", n.ID), zap.Int64("user_id", n.UserID))
		return marketplace.WebhookOutcomeSkipped, fmt.Sprintf("no integration for user %d", n.UserID)
	}

	switch topic {
	case marketplace.WebhookTopicItems:
		return s.handleItem(ctx, integ, n)
	default:
		return s.handleAudited(ctx, integ, topic, n)
	}
}

// handleItem refreshes the referenced listing from the platform.
func (s *Service) handleItem(ctx context.Context, integ *marketplace.Integration, n Notification) (marketplace.WebhookOutcome, string) {
	externalItemID := resourceTail(n.Resource)
	if externalItemID == "" {
		return marketplace.WebhookOutcomeError, fmt.Sprintf("resource %q carries no item id", n.Resource)
	}

	if _, err := s.syncer.SyncOne(ctx, integ.ID, externalItemID); err != nil {
		s.logger.Warn("webhook-triggered item sync failed",
			zap.String("notification_id", n.ID),
			zap.String("external_item_id", externalItemID),
			zap.Error(err))
		return marketplace.WebhookOutcomeError, err.Error()
	}
	return marketplace.WebhookOutcomeSuccess, ""
}

// handleAudited covers the topics the core only witnesses: the delivery is
// durable in the log and an audit entry points collaborators at the resource.
func (s *Service) handleAudited(ctx context.Context, integ *marketplace.Integration, topic marketplace.WebhookTopic, n Notification) (marketplace.WebhookOutcome, string) {
	entry := marketplace.NewSyncLogEntry(integ.ID, "webhook_"+string(topic), marketplace.SyncOutcomeSuccess, map[string]string{
		"notification_id": n.ID,
		"resource":        n.Resource,
	})
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append webhook audit entry",
			zap.String("notification_id", n.ID), zap.Error(err))
		return marketplace.WebhookOutcomeError, err.Error()
	}
	return marketplace.WebhookOutcomeSuccess, ""
}

// resourceTail extracts the final path segment of a resource locator like
// "/items/MLA123456".
func resourceTail(resource string) string {
	trimmed := strings.TrimRight(resource, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
