// Package marketplace holds the domain model for the marketplace integration
// core: the tenant's linked seller account (Integration), local copies of its
// listings (CatalogItem), the webhook delivery log (WebhookNotification), and
// the append-only sync audit trail (SyncLogEntry), plus the repository
// contracts and error taxonomy shared by the token, sync, and webhook
// application services.
package marketplace
