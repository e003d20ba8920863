package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/marketplaceapi"
)

// DefaultSafetyWindow is how close to expiry a token may get before it is
// refreshed proactively.
const DefaultSafetyWindow = 5 * time.Minute

// expiringSoonFactor widens the safety window for the informational
// expiring_soon status marker.
const expiringSoonFactor = 2

// TokenExchanger is the slice of the platform client the manager needs
type TokenExchanger interface {
	RefreshToken(ctx context.Context, refreshToken string) (*marketplaceapi.TokenResponse, error)
}

// Cipher encrypts and decrypts stored tokens
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service owns the OAuth credential lifecycle for every integration. All
// outbound platform calls obtain their bearer token here so the refresh
// concurrency rules hold in one place.
type Service struct {
	integrations marketplace.IntegrationRepository
	exchanger    TokenExchanger
	cipher       Cipher
	syncLogs     marketplace.SyncLogRepository
	safetyWindow time.Duration
	logger       *zap.Logger

	// refreshGroup collapses concurrent refreshes per integration: the
	// provider invalidates the previous refresh token the instant a new one
	// is issued, so a second in-flight refresh with the stale token would
	// poison the integration.
	refreshGroup singleflight.Group
}

// ServiceConfig contains the dependencies for the token service
type ServiceConfig struct {
	Integrations marketplace.IntegrationRepository
	Exchanger    TokenExchanger
	Cipher       Cipher
	SyncLogs     marketplace.SyncLogRepository
	SafetyWindow time.Duration
	Logger       *zap.Logger
}

// NewService creates a token lifecycle service
func NewService(cfg ServiceConfig) *Service {
	if cfg.SafetyWindow <= 0 {
		cfg.SafetyWindow = DefaultSafetyWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		integrations: cfg.Integrations,
		exchanger:    cfg.Exchanger,
		cipher:       cfg.Cipher,
		syncLogs:     cfg.SyncLogs,
		safetyWindow: cfg.SafetyWindow,
		logger:       cfg.Logger,
	}
}

// GetValidToken returns a bearer token guaranteed not to expire within the
// safety window, refreshing first when necessary. Callers get either a usable
// token or a typed error distinguishing "reconnect required"
// (ErrIntegrationRevoked) from "try again shortly" (transient taxonomy).
func (s *Service) GetValidToken(ctx context.Context, integrationID uuid.UUID) (string, error) {
	integ, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return "", err
	}
	if integ.IsRevoked() {
		return "", marketplace.ErrIntegrationRevoked
	}

	if integ.TokenExpiresWithin(s.safetyWindow) {
		if err := s.Refresh(ctx, integrationID); err != nil {
			return "", err
		}
		integ, err = s.integrations.FindByID(ctx, integrationID)
		if err != nil {
			return "", err
		}
	} else if integ.TokenExpiresWithin(s.safetyWindow*expiringSoonFactor) &&
		integ.Status == marketplace.IntegrationStatusActive {
		// Informational marker for the dashboard; best effort only.
		if err := s.integrations.UpdateStatus(ctx, integrationID, marketplace.IntegrationStatusExpiringSoon); err != nil {
			s.logger.Warn("failed to mark integration expiring_soon",
				zap.String("integration_id", integrationID.String()), zap.Error(err))
		}
	}

	return s.cipher.Decrypt(integ.AccessTokenEnc)
}

// Refresh exchanges the refresh token for a new access/refresh pair. It is
// single-flight per integration: concurrent callers await the same in-flight
// exchange instead of issuing their own.
func (s *Service) Refresh(ctx context.Context, integrationID uuid.UUID) error {
	_, err, _ := s.refreshGroup.Do(integrationID.String(), func() (any, error) {
		return nil, s.doRefresh(ctx, integrationID)
	})
	return err
}

func (s *Service) doRefresh(ctx context.Context, integrationID uuid.UUID) error {
	integ, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return err
	}
	if integ.IsRevoked() {
		return marketplace.ErrIntegrationRevoked
	}

	refreshToken, err := s.cipher.Decrypt(integ.RefreshTokenEnc)
	if err != nil {
		return fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	resp, err := s.exchanger.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, marketplace.ErrAuthRevoked) {
			// Terminal: do not retry, surface so the caller can prompt
			// reconnection.
			s.logger.Warn("refresh token rejected, revoking integration",
				zap.String("integration_id", integrationID.String()),
				zap.Error(err))
			if updateErr := s.integrations.UpdateStatus(ctx, integrationID, marketplace.IntegrationStatusRevoked); updateErr != nil {
				s.logger.Error("failed to mark integration revoked",
					zap.String("integration_id", integrationID.String()),
					zap.Error(updateErr))
			}
			s.appendLog(ctx, integrationID, marketplace.SyncOutcomeFailed, map[string]string{"reason": "invalid_grant"})
			return marketplace.ErrIntegrationRevoked
		}
		// Transient exhaustion: status stays untouched so the next caller
		// can retry.
		s.appendLog(ctx, integrationID, marketplace.SyncOutcomeFailed, map[string]string{"reason": err.Error()})
		return err
	}

	accessEnc, err := s.cipher.Encrypt(resp.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshEnc, err := s.cipher.Encrypt(resp.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	integ.ApplyTokenRefresh(accessEnc, refreshEnc, expiresAt, splitScopes(resp.Scope))
	if err := s.integrations.Save(ctx, integ); err != nil {
		return fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	s.logger.Info("token refreshed",
		zap.String("integration_id", integrationID.String()),
		zap.Time("expires_at", expiresAt))
	s.appendLog(ctx, integrationID, marketplace.SyncOutcomeSuccess, map[string]any{"expires_at": expiresAt})
	return nil
}

// WithToken runs fn with a valid bearer token. If fn reports the platform
// rejected the token (ErrAuthExpired from a 401), it forces exactly one
// refresh and retries once before surfacing a terminal auth error.
func (s *Service) WithToken(ctx context.Context, integrationID uuid.UUID, fn func(token string) error) error {
	tok, err := s.GetValidToken(ctx, integrationID)
	if err != nil {
		return err
	}

	err = fn(tok)
	if !errors.Is(err, marketplace.ErrAuthExpired) {
		return err
	}

	if err := s.Refresh(ctx, integrationID); err != nil {
		return err
	}
	tok, err = s.GetValidToken(ctx, integrationID)
	if err != nil {
		return err
	}
	err = fn(tok)
	if errors.Is(err, marketplace.ErrAuthExpired) {
		// A freshly refreshed token was still rejected; something beyond
		// expiry is wrong with the grant.
		return fmt.Errorf("%w: token rejected after refresh", marketplace.ErrAuthRevoked)
	}
	return err
}

func (s *Service) appendLog(ctx context.Context, integrationID uuid.UUID, outcome marketplace.SyncOutcome, detail any) {
	entry := marketplace.NewSyncLogEntry(integrationID, "token_refresh", outcome, detail)
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append token refresh audit entry",
			zap.String("integration_id", integrationID.String()), zap.Error(err))
	}
}

func splitScopes(scope string) []string {
	return strings.Fields(scope)
}
