// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// MarketplaceMetrics tracks webhook processing, catalog sync activity and
// token refresh outcomes.
type MarketplaceMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	webhookTotal      *Counter
	syncRunTotal      *Counter
	syncItemsTotal    *Counter
	tokenRefreshTotal *Counter

	// Gauge metrics (point-in-time values)
	catalogSize *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	catalogProvider CatalogMetricsProvider
}

// CatalogMetricsProvider provides catalog sizes for periodic metrics
// collection. This interface lets the telemetry layer query catalog state
// without depending on the persistence layer directly.
type CatalogMetricsProvider interface {
	// GetCatalogSizes returns the number of stored items per integration.
	GetCatalogSizes(ctx context.Context) (map[uuid.UUID]int64, error)
}

// MarketplaceMetricsConfig holds configuration for marketplace metrics.
type MarketplaceMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	CatalogProvider CatalogMetricsProvider
}

// NewMarketplaceMetrics creates a new MarketplaceMetrics instance.
func NewMarketplaceMetrics(cfg MarketplaceMetricsConfig) (*MarketplaceMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mm := &MarketplaceMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		catalogProvider: cfg.CatalogProvider,
	}

	var err error

	mm.webhookTotal, err = NewCounter(
		cfg.Meter,
		"sellerbridge_webhook_notifications_total",
		"Total number of webhook notifications processed",
		"{notifications}",
	)
	if err != nil {
		return nil, err
	}

	mm.syncRunTotal, err = NewCounter(
		cfg.Meter,
		"sellerbridge_sync_runs_total",
		"Total number of catalog sync runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	mm.syncItemsTotal, err = NewCounter(
		cfg.Meter,
		"sellerbridge_sync_items_total",
		"Total number of items handled by catalog sync runs",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	mm.tokenRefreshTotal, err = NewCounter(
		cfg.Meter,
		"sellerbridge_token_refresh_total",
		"Total number of OAuth token refresh attempts",
		"{refreshes}",
	)
	if err != nil {
		return nil, err
	}

	mm.catalogSize, err = NewGauge(
		cfg.Meter,
		"sellerbridge_catalog_items",
		"Number of catalog items stored per integration",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

// RecordWebhook records a processed webhook notification, labeled by topic
// and outcome. Called once per delivery, including duplicates and skips.
func (mm *MarketplaceMetrics) RecordWebhook(ctx context.Context, topic string, outcome marketplace.WebhookOutcome) {
	mm.webhookTotal.Inc(ctx,
		AttrWebhookTopic.String(topic),
		AttrWebhookOutcome.String(string(outcome)),
	)
}

// RecordSyncRun records a completed catalog sync run with its item counts.
func (mm *MarketplaceMetrics) RecordSyncRun(ctx context.Context, integrationID uuid.UUID, outcome marketplace.SyncOutcome, synced, failed int) {
	mm.syncRunTotal.Inc(ctx,
		AttrIntegrationID.String(integrationID.String()),
		AttrSyncOutcome.String(string(outcome)),
	)
	mm.syncItemsTotal.Add(ctx, int64(synced),
		AttrIntegrationID.String(integrationID.String()),
		AttrSyncOutcome.String(string(marketplace.SyncOutcomeSuccess)),
	)
	mm.syncItemsTotal.Add(ctx, int64(failed),
		AttrIntegrationID.String(integrationID.String()),
		AttrSyncOutcome.String(string(marketplace.SyncOutcomeFailed)),
	)
}

// TokenRefreshResult labels the result of a token refresh attempt.
type TokenRefreshResult string

const (
	TokenRefreshSuccess TokenRefreshResult = "success"
	TokenRefreshFailed  TokenRefreshResult = "failed"
	TokenRefreshRevoked TokenRefreshResult = "revoked"
)

// RecordTokenRefresh records a token refresh attempt.
func (mm *MarketplaceMetrics) RecordTokenRefresh(ctx context.Context, result TokenRefreshResult) {
	mm.tokenRefreshTotal.Inc(ctx, AttrRefreshResult.String(string(result)))
}

// RecordCatalogSize records the current catalog size for an integration.
func (mm *MarketplaceMetrics) RecordCatalogSize(ctx context.Context, integrationID uuid.UUID, count int64) {
	mm.catalogSize.Record(ctx, count,
		AttrIntegrationID.String(integrationID.String()),
	)
}

// StartPeriodicCollection starts periodic collection of catalog size gauges.
// This is non-blocking. Use Stop() to stop collection.
func (mm *MarketplaceMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	mm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go mm.runPeriodicCollection(ctx, interval)
	})
}

func (mm *MarketplaceMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	mm.collectCatalogSizes(ctx)

	for {
		select {
		case <-mm.stopChan:
			mm.logger.Info("Stopping periodic marketplace metrics collection")
			return
		case <-ctx.Done():
			mm.logger.Info("Context cancelled, stopping periodic marketplace metrics collection")
			return
		case <-ticker.C:
			mm.collectCatalogSizes(ctx)
		}
	}
}

func (mm *MarketplaceMetrics) collectCatalogSizes(ctx context.Context) {
	if mm.catalogProvider == nil {
		mm.logger.Debug("No catalog provider configured, skipping catalog metrics collection")
		return
	}

	sizes, err := mm.catalogProvider.GetCatalogSizes(ctx)
	if err != nil {
		mm.logger.Error("Failed to get catalog sizes for metrics collection", zap.Error(err))
		return
	}

	for integrationID, count := range sizes {
		mm.RecordCatalogSize(ctx, integrationID, count)
	}
}

// Stop stops the periodic collection.
func (mm *MarketplaceMetrics) Stop() {
	mm.stopOnce.Do(func() {
		close(mm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewMarketplaceMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
