package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/marketplaceapi"
)

// passthroughTokens hands every caller the same token without refresh logic;
// the pipeline's token interactions are covered in the token package.
type passthroughTokens struct{}

func (passthroughTokens) WithToken(ctx context.Context, id uuid.UUID, fn func(string) error) error {
	return fn("test-token")
}

// fakeCatalogAPI serves a scripted catalog and counts requests.
type fakeCatalogAPI struct {
	itemIDs      []string
	failPages    map[int]bool // offset -> fail
	failSlots    map[string]bool
	invalidSlots map[string]bool

	searchCalls atomic.Int32
	multiCalls  atomic.Int32
	maxBatch    atomic.Int32
}

func (f *fakeCatalogAPI) SearchItemIDs(ctx context.Context, token, sellerID string, offset, limit int) (*marketplaceapi.SearchPage, error) {
	f.searchCalls.Add(1)
	if f.failPages[offset] {
		return nil, marketplace.ErrTransientNetwork
	}
	end := offset + limit
	if end > len(f.itemIDs) {
		end = len(f.itemIDs)
	}
	var results []string
	if offset < len(f.itemIDs) {
		results = f.itemIDs[offset:end]
	}
	return &marketplaceapi.SearchPage{
		Results: results,
		Paging:  marketplaceapi.Paging{Total: len(f.itemIDs), Offset: offset, Limit: limit},
	}, nil
}

func (f *fakeCatalogAPI) GetItems(ctx context.Context, token string, ids []string) ([]marketplaceapi.ItemResult, error) {
	f.multiCalls.Add(1)
	if int32(len(ids)) > f.maxBatch.Load() {
		f.maxBatch.Store(int32(len(ids)))
	}
	results := make([]marketplaceapi.ItemResult, len(ids))
	for i, id := range ids {
		if f.failSlots[id] {
			results[i] = marketplaceapi.ItemResult{Code: 404}
			continue
		}
		title := "Item " + id
		if f.invalidSlots[id] {
			title = ""
		}
		results[i] = marketplaceapi.ItemResult{
			Code: 200,
			Body: marketplaceapi.ItemDetail{
				ID:                id,
				Title:             title,
				Price:             decimal.NewFromInt(10),
				CurrencyID:        "ARS",
				AvailableQuantity: 5,
				SoldQuantity:      2,
				Status:            "active",
				CategoryID:        "CAT1",
				Permalink:         "https://listing/" + id,
			},
		}
	}
	return results, nil
}

// memItemRepo upserts by natural key so idempotency is observable.
type memItemRepo struct {
	mu    sync.Mutex
	items map[string]marketplace.CatalogItem
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[string]marketplace.CatalogItem)}
}

func (r *memItemRepo) key(integrationID uuid.UUID, externalID string) string {
	return integrationID.String() + "/" + externalID
}

func (r *memItemRepo) Upsert(ctx context.Context, item *marketplace.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.key(item.IntegrationID, item.ExternalItemID)] = *item
	return nil
}

func (r *memItemRepo) FindByNaturalKey(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[r.key(integrationID, externalItemID)]
	if !ok {
		return nil, marketplace.ErrItemNotFound
	}
	return &item, nil
}

func (r *memItemRepo) List(ctx context.Context, integrationID uuid.UUID, filter marketplace.CatalogItemFilter) ([]marketplace.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []marketplace.CatalogItem
	for _, item := range r.items {
		if item.IntegrationID == integrationID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) Count(ctx context.Context, integrationID uuid.UUID) (int64, error) {
	items, _ := r.List(ctx, integrationID, marketplace.CatalogItemFilter{})
	return int64(len(items)), nil
}

type memIntegrationRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*marketplace.Integration
}

func newMemIntegrationRepo(integs ...*marketplace.Integration) *memIntegrationRepo {
	r := &memIntegrationRepo{byID: make(map[uuid.UUID]*marketplace.Integration)}
	for _, i := range integs {
		r.byID[i.ID] = i
	}
	return r
}

func (r *memIntegrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integ, ok := r.byID[id]; ok {
		cp := *integ
		return &cp, nil
	}
	return nil, marketplace.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*marketplace.Integration, error) {
	return nil, marketplace.ErrNoActiveIntegration
}

func (r *memIntegrationRepo) FindByExternalAccount(ctx context.Context, id string) (*marketplace.Integration, error) {
	return nil, marketplace.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) Save(ctx context.Context, integ *marketplace.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *integ
	r.byID[integ.ID] = &cp
	return nil
}

func (r *memIntegrationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status marketplace.IntegrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integ, ok := r.byID[id]; ok {
		integ.Status = status
	}
	return nil
}

func (r *memIntegrationRepo) UpdateLastFullSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integ, ok := r.byID[id]; ok {
		integ.LastFullSyncAt = &at
	}
	return nil
}

type memSyncLogRepo struct {
	mu      sync.Mutex
	entries []marketplace.SyncLogEntry
}

func (r *memSyncLogRepo) Append(ctx context.Context, e *marketplace.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memSyncLogRepo) ListByIntegration(ctx context.Context, id uuid.UUID, limit int) ([]marketplace.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]marketplace.SyncLogEntry(nil), r.entries...), nil
}

func sellerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("MLA%04d", i)
	}
	return ids
}

func testIntegration() *marketplace.Integration {
	return marketplace.NewIntegration(uuid.New(), "42", "enc-a", "enc-r", time.Now().Add(time.Hour), nil)
}

func newTestService(integ *marketplace.Integration, api *fakeCatalogAPI, items *memItemRepo) (*Service, *memIntegrationRepo, *memSyncLogRepo) {
	integRepo := newMemIntegrationRepo(integ)
	logs := &memSyncLogRepo{}
	svc := NewService(ServiceConfig{
		Tokens:       passthroughTokens{},
		API:          api,
		Integrations: integRepo,
		Items:        items,
		SyncLogs:     logs,
		Config:       Config{PageSize: 50, BatchSize: 20, MaxItems: 10000, Workers: 3},
		Logger:       zap.NewNop(),
	})
	return svc, integRepo, logs
}

func TestSyncAll_RequestCounts(t *testing.T) {
	// 123 items, page size 50 -> 3 listing pages (50, 50, 23);
	// batch size 20 -> 7 multi-get batches (6x20 + 1x3).
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(123)}
	items := newMemItemRepo()
	svc, _, _ := newTestService(integ, api, items)

	summary, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)

	assert.Equal(t, Summary{Synced: 123, Failed: 0, Total: 123}, summary)
	assert.Equal(t, int32(3), api.searchCalls.Load())
	assert.Equal(t, int32(7), api.multiCalls.Load())
	assert.LessOrEqual(t, api.maxBatch.Load(), int32(20))
}

func TestSyncAll_IdempotentRerun(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(60)}
	items := newMemItemRepo()
	svc, _, _ := newTestService(integ, api, items)

	_, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)
	countAfterFirst, err := items.Count(context.Background(), integ.ID)
	require.NoError(t, err)

	_, err = svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)
	countAfterSecond, err := items.Count(context.Background(), integ.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(60), countAfterFirst)
	assert.Equal(t, countAfterFirst, countAfterSecond,
		"re-running against unchanged upstream must not change row count")
}

func TestSyncAll_PageFailureKeepsPartialProgress(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{
		itemIDs:   sellerIDs(123),
		failPages: map[int]bool{50: true}, // second page dies
	}
	items := newMemItemRepo()
	svc, _, _ := newTestService(integ, api, items)

	summary, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err, "page failures are absorbed, not raised")

	assert.Equal(t, 50, summary.Total, "first page of ids survives")
	assert.Equal(t, 50, summary.Synced)
}

func TestSyncAll_FailedSlotsCounted(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{
		itemIDs:      sellerIDs(40),
		failSlots:    map[string]bool{"MLA0003": true, "MLA0025": true},
		invalidSlots: map[string]bool{"MLA0010": true},
	}
	items := newMemItemRepo()
	svc, _, logs := newTestService(integ, api, items)

	summary, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)

	assert.Equal(t, 40, summary.Total)
	assert.Equal(t, 3, summary.Failed, "two 404 slots plus one invalid payload")
	assert.Equal(t, 37, summary.Synced)

	entries, _ := logs.ListByIntegration(context.Background(), integ.ID, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, marketplace.SyncOutcomePartial, entries[0].Outcome)
}

func TestSyncAll_EmptyCatalogIsNoOp(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{}
	items := newMemItemRepo()
	svc, _, logs := newTestService(integ, api, items)

	summary, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)

	assert.Equal(t, Summary{}, summary)
	assert.Equal(t, int32(0), api.multiCalls.Load())

	entries, _ := logs.ListByIntegration(context.Background(), integ.ID, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, marketplace.SyncOutcomeSuccess, entries[0].Outcome)
}

func TestSyncAll_UpdatesLastFullSyncOnce(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(5)}
	svc, integRepo, _ := newTestService(integ, api, newMemItemRepo())

	_, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)

	stored, err := integRepo.FindByID(context.Background(), integ.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastFullSyncAt)
	assert.WithinDuration(t, time.Now(), *stored.LastFullSyncAt, 5*time.Second)
}

func TestSyncAll_RevokedIntegrationRejected(t *testing.T) {
	integ := testIntegration()
	integ.Revoke()
	svc, _, _ := newTestService(integ, &fakeCatalogAPI{}, newMemItemRepo())

	_, err := svc.SyncAll(context.Background(), integ.ID)
	assert.ErrorIs(t, err, marketplace.ErrIntegrationRevoked)
}

func TestSyncAll_SafetyCap(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(150)}
	items := newMemItemRepo()
	integRepo := newMemIntegrationRepo(integ)
	svc := NewService(ServiceConfig{
		Tokens:       passthroughTokens{},
		API:          api,
		Integrations: integRepo,
		Items:        items,
		SyncLogs:     &memSyncLogRepo{},
		Config:       Config{PageSize: 50, BatchSize: 20, MaxItems: 100, Workers: 2},
		Logger:       zap.NewNop(),
	})

	summary, err := svc.SyncAll(context.Background(), integ.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, summary.Total, "enumeration stops at the safety cap")
}

func TestSyncOne_UpsertsSingleItem(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(3)}
	items := newMemItemRepo()
	svc, _, _ := newTestService(integ, api, items)

	item, err := svc.SyncOne(context.Background(), integ.ID, "MLA0001")
	require.NoError(t, err)
	assert.Equal(t, "MLA0001", item.ExternalItemID)
	assert.Equal(t, marketplace.ItemStatusActive, item.Status)

	stored, err := items.FindByNaturalKey(context.Background(), integ.ID, "MLA0001")
	require.NoError(t, err)
	assert.Equal(t, "Item MLA0001", stored.Title)
	assert.Equal(t, int32(0), api.searchCalls.Load(), "SyncOne bypasses enumeration")
}

func TestSyncOne_MissingItem(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{failSlots: map[string]bool{"MLA0404": true}}
	svc, _, _ := newTestService(integ, api, newMemItemRepo())

	_, err := svc.SyncOne(context.Background(), integ.ID, "MLA0404")
	assert.ErrorIs(t, err, marketplace.ErrItemNotFound)
}

func TestSyncAll_CancelledBetweenBatches(t *testing.T) {
	integ := testIntegration()
	api := &fakeCatalogAPI{itemIDs: sellerIDs(10)}
	items := newMemItemRepo()
	svc, _, _ := newTestService(integ, api, items)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.SyncAll(ctx, integ.ID)
	require.NoError(t, err, "cancellation is cooperative, already-collected work is kept")
	assert.Equal(t, 0, summary.Synced)
}

func TestChunkIDs(t *testing.T) {
	chunks := chunkIDs(sellerIDs(123), 20)
	require.Len(t, chunks, 7)
	for i := 0; i < 6; i++ {
		assert.Len(t, chunks[i], 20)
	}
	assert.Len(t, chunks[6], 3)

	assert.Nil(t, chunkIDs(nil, 20))
}
