package marketplace

import "errors"

var (
	// Integration errors
	ErrIntegrationNotFound  = errors.New("marketplace: integration not found")
	ErrIntegrationRevoked   = errors.New("marketplace: integration revoked, reconnection required")
	ErrNoActiveIntegration  = errors.New("marketplace: no active integration for tenant")
	ErrIntegrationConflict  = errors.New("marketplace: tenant already has an active integration")
	ErrEncryptionKeyInvalid = errors.New("marketplace: token encryption key invalid")

	// Auth errors. ErrAuthExpired is recoverable by a refresh; ErrAuthRevoked
	// is terminal and requires the seller to reconnect the account.
	ErrAuthExpired = errors.New("marketplace: access token expired or rejected")
	ErrAuthRevoked = errors.New("marketplace: refresh token rejected by provider")

	// Transport errors
	ErrRateLimited      = errors.New("marketplace: rate limited by platform")
	ErrTransientNetwork = errors.New("marketplace: transient network failure")
	ErrInvalidResponse  = errors.New("marketplace: invalid platform response")

	// Sync errors
	ErrItemValidation = errors.New("marketplace: item payload failed validation")
	ErrItemNotFound   = errors.New("marketplace: item not found on platform")

	// Webhook errors
	ErrDuplicateDelivery    = errors.New("marketplace: notification already processed")
	ErrNotificationNotFound = errors.New("marketplace: notification not found")
)

// IsTransient reports whether the error is worth retrying later without
// operator intervention.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientNetwork)
}

// IsTerminalAuth reports whether the error means the stored credentials are
// unusable and the seller must reconnect.
func IsTerminalAuth(err error) bool {
	return errors.Is(err, ErrAuthRevoked) || errors.Is(err, ErrIntegrationRevoked)
}
