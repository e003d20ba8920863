package marketplace

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the listing status of a catalog item on the platform
type ItemStatus string

const (
	ItemStatusActive ItemStatus = "active"
	ItemStatusPaused ItemStatus = "paused"
	ItemStatusClosed ItemStatus = "closed"
	ItemStatusOther  ItemStatus = "other"
)

// NormalizeItemStatus maps a raw platform status onto the known set. Anything
// unrecognized becomes ItemStatusOther rather than failing the item.
func NormalizeItemStatus(raw string) ItemStatus {
	switch ItemStatus(raw) {
	case ItemStatusActive, ItemStatusPaused, ItemStatusClosed:
		return ItemStatus(raw)
	default:
		return ItemStatusOther
	}
}

// Priority returns the sort rank of the status: active listings come first
// on downstream listing pages, closed and unknown ones last.
func (s ItemStatus) Priority() int {
	switch s {
	case ItemStatusActive:
		return 0
	case ItemStatusPaused:
		return 1
	case ItemStatusClosed:
		return 2
	default:
		return 3
	}
}

// CatalogItem is the local copy of one marketplace listing. The natural key
// (IntegrationID, ExternalItemID) is unique and drives idempotent upserts.
// Items are never deleted on sync; delisted items stay as closed rows so
// historical counts survive.
type CatalogItem struct {
	ID                uuid.UUID
	IntegrationID     uuid.UUID
	ExternalItemID    string
	Title             string
	Price             decimal.Decimal
	Currency          string
	AvailableQuantity int
	SoldQuantity      int
	Status            ItemStatus
	CategoryID        string
	Permalink         string
	RawPayload        string
	LastSyncedAt      time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SortItems orders items deterministically: status priority first, then
// lexicographic title. This is a presentation concern carried by the sync so
// listing pages show actionable items first; it is not a storage invariant.
func SortItems(items []CatalogItem) {
	sort.SliceStable(items, func(a, b int) bool {
		pa, pb := items[a].Status.Priority(), items[b].Status.Priority()
		if pa != pb {
			return pa < pb
		}
		return items[a].Title < items[b].Title
	})
}
