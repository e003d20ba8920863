package marketplace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncOutcome classifies how a sync or refresh operation ended
type SyncOutcome string

const (
	SyncOutcomeSuccess SyncOutcome = "success"
	SyncOutcomePartial SyncOutcome = "partial"
	SyncOutcomeFailed  SyncOutcome = "failed"
)

// SyncLogEntry is an append-only audit record for sync and token operations.
// Rows are written once and never mutated.
type SyncLogEntry struct {
	ID            uuid.UUID
	IntegrationID uuid.UUID
	Operation     string
	Outcome       SyncOutcome
	Detail        string
	CreatedAt     time.Time
}

// NewSyncLogEntry creates an audit entry. Detail is marshalled to JSON; a
// marshal failure degrades to an empty detail rather than losing the entry.
func NewSyncLogEntry(integrationID uuid.UUID, operation string, outcome SyncOutcome, detail any) *SyncLogEntry {
	entry := &SyncLogEntry{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		Operation:     operation,
		Outcome:       outcome,
		CreatedAt:     time.Now(),
	}
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = string(raw)
		}
	}
	return entry
}
