package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/cache"
	"github.com/sellerbridge/backend/internal/infrastructure/marketplaceapi"
	"github.com/sellerbridge/backend/internal/infrastructure/telemetry"
)

// Defaults for the pipeline's tunables. Worker bounds stay conservative so a
// full sync does not eat the platform's rate budget for interactive calls.
const (
	DefaultPageSize  = 50
	DefaultBatchSize = 20
	DefaultMaxItems  = 10000
	DefaultWorkers   = 4
)

// Summary is the aggregate result of a sync run. Per-item failures are
// counted here instead of raised; callers decide whether to alert.
type Summary struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Outcome classifies the run for the audit log.
func (s Summary) Outcome() marketplace.SyncOutcome {
	switch {
	case s.Failed == 0:
		return marketplace.SyncOutcomeSuccess
	case s.Synced > 0:
		return marketplace.SyncOutcomePartial
	default:
		return marketplace.SyncOutcomeFailed
	}
}

// TokenSource supplies valid bearer tokens with the 401 refresh-retry rule
type TokenSource interface {
	WithToken(ctx context.Context, integrationID uuid.UUID, fn func(token string) error) error
}

// CatalogAPI is the slice of the platform client the pipeline needs
type CatalogAPI interface {
	SearchItemIDs(ctx context.Context, token, sellerID string, offset, limit int) (*marketplaceapi.SearchPage, error)
	GetItems(ctx context.Context, token string, ids []string) ([]marketplaceapi.ItemResult, error)
}

// RunRecorder receives per-run counters. Optional; a nil recorder disables
// run metrics without affecting the pipeline.
type RunRecorder interface {
	RecordSyncRun(ctx context.Context, integrationID uuid.UUID, outcome marketplace.SyncOutcome, synced, failed int)
}

// Config holds the pipeline tunables
type Config struct {
	PageSize  int
	BatchSize int
	MaxItems  int
	Workers   int
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Service reconciles the platform catalog into the local datastore.
type Service struct {
	tokens       TokenSource
	api          CatalogAPI
	integrations marketplace.IntegrationRepository
	items        marketplace.CatalogItemRepository
	syncLogs     marketplace.SyncLogRepository
	cache        cache.Cache
	recorder     RunRecorder
	config       Config
	logger       *zap.Logger
}

// ServiceConfig contains the dependencies for the sync pipeline
type ServiceConfig struct {
	Tokens       TokenSource
	API          CatalogAPI
	Integrations marketplace.IntegrationRepository
	Items        marketplace.CatalogItemRepository
	SyncLogs     marketplace.SyncLogRepository
	Cache        cache.Cache
	Recorder     RunRecorder
	Config       Config
	Logger       *zap.Logger
}

// NewService creates a catalog sync pipeline
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		tokens:       cfg.Tokens,
		api:          cfg.API,
		integrations: cfg.Integrations,
		items:        cfg.Items,
		syncLogs:     cfg.SyncLogs,
		cache:        cfg.Cache,
		recorder:     cfg.Recorder,
		config:       cfg.Config.withDefaults(),
		logger:       cfg.Logger,
	}
}

// SyncAll runs the two-phase full sync: sequential id enumeration, then
// batched detail fetches on a bounded worker pool. It never raises on
// per-item or per-page failures; the Summary carries the aggregate.
func (s *Service) SyncAll(ctx context.Context, integrationID uuid.UUID) (Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog_sync", "sync_all",
		telemetry.WithAttribute(telemetry.SpanAttrIntegrationID, integrationID.String()))
	defer span.End()

	integ, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Summary{}, err
	}
	if integ.IsRevoked() {
		telemetry.RecordError(span, marketplace.ErrIntegrationRevoked)
		return Summary{}, marketplace.ErrIntegrationRevoked
	}

	start := time.Now()
	ids, enumErr := s.enumerateIDs(ctx, integ)
	if enumErr != nil {
		// Partial enumeration is preferable to an all-or-nothing abort; the
		// collected ids still get synced below.
		s.logger.Warn("id enumeration stopped early",
			zap.String("integration_id", integrationID.String()),
			zap.Int("collected", len(ids)),
			zap.Error(enumErr))
	}

	summary := Summary{Total: len(ids)}
	if len(ids) == 0 {
		// Nothing listed upstream is a successful no-op.
		s.finishRun(ctx, integ, "sync_all", summary, start)
		return summary, nil
	}

	items, failed := s.fetchDetails(ctx, integ, ids)
	summary.Failed = failed

	// Presentation ordering carried by the sync: actionable items first on
	// downstream listing pages.
	marketplace.SortItems(items)

	for i := range items {
		if err := s.items.Upsert(ctx, &items[i]); err != nil {
			s.logger.Error("failed to upsert catalog item",
				zap.String("integration_id", integrationID.String()),
				zap.String("external_item_id", items[i].ExternalItemID),
				zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Synced++
	}

	// One timestamp per run, written at the end: a crash mid-run stays
	// visible as a stale last-sync marker.
	if err := s.integrations.UpdateLastFullSync(ctx, integrationID, time.Now()); err != nil {
		s.logger.Error("failed to update last full sync timestamp",
			zap.String("integration_id", integrationID.String()), zap.Error(err))
	}

	s.invalidateTenantAggregates(ctx, integ.TenantID)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCount, summary.Total,
		telemetry.SpanAttrOutcome, string(summary.Outcome()),
	)
	s.finishRun(ctx, integ, "sync_all", summary, start)
	return summary, nil
}

// SyncOne fetches a single item by id, bypassing enumeration. Shares the
// upsert contract with SyncAll; used by the webhook processor for targeted
// refresh.
func (s *Service) SyncOne(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog_sync", "sync_one",
		telemetry.WithAttribute(telemetry.SpanAttrIntegrationID, integrationID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrExternalItemID, externalItemID))
	defer span.End()

	integ, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integ.IsRevoked() {
		return nil, marketplace.ErrIntegrationRevoked
	}

	var item *marketplace.CatalogItem
	err = s.tokens.WithToken(ctx, integrationID, func(token string) error {
		results, err := s.api.GetItems(ctx, token, []string{externalItemID})
		if err != nil {
			return err
		}
		if len(results) == 0 || !results[0].OK() {
			return fmt.Errorf("%w: %s", marketplace.ErrItemNotFound, externalItemID)
		}
		converted, err := s.toDomainItem(integ.ID, &results[0].Body)
		if err != nil {
			return err
		}
		item = converted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.items.Upsert(ctx, item); err != nil {
		return nil, err
	}
	s.invalidateTenantAggregates(ctx, integ.TenantID)
	return item, nil
}

// enumerateIDs pages through the seller's listing strictly in order: each
// offset depends on the previously reported total, so this phase is
// inherently sequential. A page failure stops enumeration gracefully and
// returns whatever was collected.
func (s *Service) enumerateIDs(ctx context.Context, integ *marketplace.Integration) ([]string, error) {
	var ids []string
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		var page *marketplaceapi.SearchPage
		err := s.tokens.WithToken(ctx, integ.ID, func(token string) error {
			p, err := s.api.SearchItemIDs(ctx, token, integ.ExternalAccountID, offset, s.config.PageSize)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return ids, err
		}

		ids = append(ids, page.Results...)
		offset += len(page.Results)

		if offset >= page.Paging.Total || len(page.Results) == 0 {
			return ids, nil
		}
		if len(ids) >= s.config.MaxItems {
			s.logger.Warn("id enumeration hit safety cap",
				zap.String("integration_id", integ.ID.String()),
				zap.Int("cap", s.config.MaxItems))
			return ids[:s.config.MaxItems], nil
		}
	}
}

// fetchDetails chunks ids into multi-get batches and fetches them on a
// bounded worker pool. Batches are independent, so bounded parallelism is
// safe; cancellation is cooperative between chunks, never mid-request.
func (s *Service) fetchDetails(ctx context.Context, integ *marketplace.Integration, ids []string) ([]marketplace.CatalogItem, int) {
	chunks := chunkIDs(ids, s.config.BatchSize)

	var (
		mu     sync.Mutex
		items  []marketplace.CatalogItem
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for _, chunk := range chunks {
		if gctx.Err() != nil {
			mu.Lock()
			failed += len(chunk)
			mu.Unlock()
			continue
		}

		batch := chunk
		g.Go(func() error {
			var results []marketplaceapi.ItemResult
			err := s.tokens.WithToken(gctx, integ.ID, func(token string) error {
				r, err := s.api.GetItems(gctx, token, batch)
				if err != nil {
					return err
				}
				results = r
				return nil
			})
			if err != nil {
				s.logger.Warn("multi-get batch failed",
					zap.String("integration_id", integ.ID.String()),
					zap.Int("batch_size", len(batch)),
					zap.Error(err))
				mu.Lock()
				failed += len(batch)
				mu.Unlock()
				return nil // batch failures are counted, never abort the run
			}

			var batchItems []marketplace.CatalogItem
			batchFailed := 0
			for i := range results {
				if !results[i].OK() {
					batchFailed++
					continue
				}
				item, err := s.toDomainItem(integ.ID, &results[i].Body)
				if err != nil {
					s.logger.Warn("skipping invalid item payload",
						zap.String("integration_id", integ.ID.String()),
						zap.Error(err))
					batchFailed++
					continue
				}
				batchItems = append(batchItems, *item)
			}

			mu.Lock()
			items = append(items, batchItems...)
			failed += batchFailed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return items, failed
}

// toDomainItem validates a platform payload at the boundary and converts it
func (s *Service) toDomainItem(integrationID uuid.UUID, detail *marketplaceapi.ItemDetail) (*marketplace.CatalogItem, error) {
	if err := detail.Validate(); err != nil {
		return nil, err
	}

	// Opaque passthrough of the platform payload for debugging and future
	// fields, stored alongside the normalized columns.
	var raw string
	if rawBytes, err := json.Marshal(detail); err == nil {
		raw = string(rawBytes)
	}

	now := time.Now()
	return &marketplace.CatalogItem{
		ID:                uuid.New(),
		IntegrationID:     integrationID,
		ExternalItemID:    detail.ID,
		Title:             detail.Title,
		Price:             detail.Price,
		Currency:          detail.CurrencyID,
		AvailableQuantity: detail.AvailableQuantity,
		SoldQuantity:      detail.SoldQuantity,
		Status:            marketplace.NormalizeItemStatus(detail.Status),
		CategoryID:        detail.CategoryID,
		Permalink:         detail.Permalink,
		RawPayload:        raw,
		LastSyncedAt:      now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (s *Service) invalidateTenantAggregates(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("tenant:%s:*", tenantID)
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate tenant cache", zap.String("pattern", pattern), zap.Error(err))
	}
}

// finishRun writes the audit entry and reports run counters.
func (s *Service) finishRun(ctx context.Context, integ *marketplace.Integration, operation string, summary Summary, start time.Time) {
	detail := map[string]any{
		"synced":      summary.Synced,
		"failed":      summary.Failed,
		"total":       summary.Total,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	entry := marketplace.NewSyncLogEntry(integ.ID, operation, summary.Outcome(), detail)
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append sync audit entry",
			zap.String("integration_id", integ.ID.String()), zap.Error(err))
	}
	if s.recorder != nil {
		s.recorder.RecordSyncRun(ctx, integ.ID, summary.Outcome(), summary.Synced, summary.Failed)
	}
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
