package integration

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/cache"
	"github.com/sellerbridge/backend/internal/infrastructure/marketplaceapi"
)

// CodeExchanger is the slice of the platform client the connect flow needs
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*marketplaceapi.TokenResponse, error)
}

// Cipher encrypts tokens before they touch the datastore
type Cipher interface {
	Encrypt(plaintext string) (string, error)
}

// Overview is the dashboard view of a tenant's marketplace link. Credentials
// never leave the service.
type Overview struct {
	ID                uuid.UUID                     `json:"id"`
	ExternalAccountID string                        `json:"external_account_id"`
	Status            marketplace.IntegrationStatus `json:"status"`
	Scopes            []string                      `json:"scopes"`
	TokenExpiresAt    time.Time                     `json:"token_expires_at"`
	LastFullSyncAt    *time.Time                    `json:"last_full_sync_at,omitempty"`
	ItemCount         int64                         `json:"item_count"`
	ConnectedAt       time.Time                     `json:"connected_at"`
}

// Service manages the tenant-facing integration lifecycle: connecting a
// seller account, inspecting the link, and disconnecting it.
type Service struct {
	integrations marketplace.IntegrationRepository
	items        marketplace.CatalogItemRepository
	syncLogs     marketplace.SyncLogRepository
	exchanger    CodeExchanger
	cipher       Cipher
	cache        cache.Cache
	logger       *zap.Logger
}

// ServiceConfig contains the dependencies for the integration service
type ServiceConfig struct {
	Integrations marketplace.IntegrationRepository
	Items        marketplace.CatalogItemRepository
	SyncLogs     marketplace.SyncLogRepository
	Exchanger    CodeExchanger
	Cipher       Cipher
	Cache        cache.Cache
	Logger       *zap.Logger
}

// NewService creates an integration management service
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		integrations: cfg.Integrations,
		items:        cfg.Items,
		syncLogs:     cfg.SyncLogs,
		exchanger:    cfg.Exchanger,
		cipher:       cfg.Cipher,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
	}
}

// Connect exchanges an OAuth authorization code and stores the resulting
// credential pair encrypted. A tenant with a live integration must disconnect
// first; reconnecting is an explicit two-step so a typoed second connect
// cannot silently clobber a working link.
func (s *Service) Connect(ctx context.Context, tenantID uuid.UUID, code, redirectURI string) (*marketplace.Integration, error) {
	if existing, err := s.integrations.FindActiveByTenant(ctx, tenantID); err == nil && !existing.IsRevoked() {
		return nil, fmt.Errorf("%w: tenant already has integration %s", marketplace.ErrIntegrationConflict, existing.ID)
	}

	resp, err := s.exchanger.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	accessEnc, err := s.cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := s.cipher.Encrypt(resp.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	integ := marketplace.NewIntegration(
		tenantID,
		strconv.FormatInt(resp.UserID, 10),
		accessEnc,
		refreshEnc,
		time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second),
		splitScopes(resp.Scope),
	)
	if err := s.integrations.Save(ctx, integ); err != nil {
		return nil, err
	}

	s.logger.Info("integration connected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("integration_id", integ.ID.String()),
		zap.String("external_account_id", integ.ExternalAccountID))
	s.invalidateTenant(ctx, tenantID)
	return integ, nil
}

// GetCurrent returns the tenant's active integration overview, cache-aside.
func (s *Service) GetCurrent(ctx context.Context, tenantID uuid.UUID) (*Overview, error) {
	if s.cache == nil {
		return s.buildOverview(ctx, tenantID)
	}

	key := fmt.Sprintf("tenant:%s:integration", tenantID)
	return cache.GetJSON[*Overview](ctx, s.cache, key, cache.TTLShort, func(ctx context.Context) (*Overview, error) {
		return s.buildOverview(ctx, tenantID)
	})
}

func (s *Service) buildOverview(ctx context.Context, tenantID uuid.UUID) (*Overview, error) {
	integ, err := s.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	count, err := s.items.Count(ctx, integ.ID)
	if err != nil {
		s.logger.Warn("failed to count catalog items",
			zap.String("integration_id", integ.ID.String()), zap.Error(err))
	}

	return &Overview{
		ID:                integ.ID,
		ExternalAccountID: integ.ExternalAccountID,
		Status:            integ.Status,
		Scopes:            integ.Scopes,
		TokenExpiresAt:    integ.TokenExpiresAt,
		LastFullSyncAt:    integ.LastFullSyncAt,
		ItemCount:         count,
		ConnectedAt:       integ.CreatedAt,
	}, nil
}

// Disconnect terminally revokes the tenant's active integration. Local
// catalog copies stay in place; only the credential link dies.
func (s *Service) Disconnect(ctx context.Context, tenantID uuid.UUID) error {
	integ, err := s.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	integ.Revoke()
	if err := s.integrations.Save(ctx, integ); err != nil {
		return err
	}

	s.logger.Info("integration disconnected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("integration_id", integ.ID.String()))
	s.invalidateTenant(ctx, tenantID)
	return nil
}

// ListItems returns the tenant's local catalog copy, ordered actionable-first.
func (s *Service) ListItems(ctx context.Context, tenantID uuid.UUID, filter marketplace.CatalogItemFilter) ([]marketplace.CatalogItem, error) {
	integ, err := s.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.items.List(ctx, integ.ID, filter)
}

// SyncHistory returns the most recent audit entries for the tenant's link.
func (s *Service) SyncHistory(ctx context.Context, tenantID uuid.UUID, limit int) ([]marketplace.SyncLogEntry, error) {
	integ, err := s.integrations.FindActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.syncLogs.ListByIntegration(ctx, integ.ID, limit)
}

func (s *Service) invalidateTenant(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("tenant:%s:*", tenantID)
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate tenant cache", zap.String("pattern", pattern), zap.Error(err))
	}
}

func splitScopes(scope string) []string {
	return strings.Fields(scope)
}
