package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// IntegrationStatus represents the lifecycle status of a marketplace link
type IntegrationStatus string

const (
	IntegrationStatusActive       IntegrationStatus = "active"
	IntegrationStatusExpiringSoon IntegrationStatus = "expiring_soon"
	IntegrationStatusExpired      IntegrationStatus = "expired"
	IntegrationStatusError        IntegrationStatus = "error"
	IntegrationStatusRevoked      IntegrationStatus = "revoked"
)

// IsValid returns true if the status is a known lifecycle status
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusActive, IntegrationStatusExpiringSoon,
		IntegrationStatusExpired, IntegrationStatusError, IntegrationStatusRevoked:
		return true
	default:
		return false
	}
}

// Integration is a tenant's link to a marketplace seller account, including
// its OAuth credentials and lifecycle status. At most one integration per
// tenant may be active; the rest are revoked history.
//
// Access and refresh tokens are stored encrypted; only the token lifecycle
// manager ever sees the plaintext.
type Integration struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ExternalAccountID string
	AccessTokenEnc    string
	RefreshTokenEnc   string
	TokenExpiresAt    time.Time
	Status            IntegrationStatus
	Scopes            []string
	LastFullSyncAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewIntegration creates an active integration after a successful OAuth
// code exchange. Token fields must already be encrypted.
func NewIntegration(tenantID uuid.UUID, externalAccountID, accessTokenEnc, refreshTokenEnc string, expiresAt time.Time, scopes []string) *Integration {
	now := time.Now()
	return &Integration{
		ID:                uuid.New(),
		TenantID:          tenantID,
		ExternalAccountID: externalAccountID,
		AccessTokenEnc:    accessTokenEnc,
		RefreshTokenEnc:   refreshTokenEnc,
		TokenExpiresAt:    expiresAt,
		Status:            IntegrationStatusActive,
		Scopes:            scopes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// TokenExpiresWithin reports whether the access token expires inside the
// given safety window (or is already expired).
func (i *Integration) TokenExpiresWithin(window time.Duration) bool {
	return time.Now().Add(window).After(i.TokenExpiresAt)
}

// IsRevoked returns true once the integration has been terminally disabled
func (i *Integration) IsRevoked() bool {
	return i.Status == IntegrationStatusRevoked
}

// ApplyTokenRefresh records a successful token exchange. Both tokens must be
// encrypted by the caller. Status returns to active regardless of any prior
// expiring_soon/expired/error marker.
func (i *Integration) ApplyTokenRefresh(accessTokenEnc, refreshTokenEnc string, expiresAt time.Time, scopes []string) {
	i.AccessTokenEnc = accessTokenEnc
	i.RefreshTokenEnc = refreshTokenEnc
	i.TokenExpiresAt = expiresAt
	if len(scopes) > 0 {
		i.Scopes = scopes
	}
	i.Status = IntegrationStatusActive
	i.UpdatedAt = time.Now()
}

// Revoke terminally disables the integration. Used on invalid_grant from the
// provider and on explicit seller disconnect.
func (i *Integration) Revoke() {
	i.Status = IntegrationStatusRevoked
	i.UpdatedAt = time.Now()
}

// MarkSynced records the completion timestamp of a full catalog sync run.
func (i *Integration) MarkSynced(at time.Time) {
	i.LastFullSyncAt = &at
	i.UpdatedAt = time.Now()
}
