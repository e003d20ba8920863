package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
	"github.com/sellerbridge/backend/internal/infrastructure/cache"
)

// memWebhookRepo enforces the notification-id unique constraint the way the
// datastore does, so the dedup race resolution is observable in tests.
type memWebhookRepo struct {
	mu   sync.Mutex
	rows map[string]*marketplace.WebhookNotification

	createErr error
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{rows: make(map[string]*marketplace.WebhookNotification)}
}

func (r *memWebhookRepo) Create(ctx context.Context, n *marketplace.WebhookNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.rows[n.NotificationID]; exists {
		return marketplace.ErrDuplicateDelivery
	}
	cp := *n
	r.rows[n.NotificationID] = &cp
	return nil
}

func (r *memWebhookRepo) Update(ctx context.Context, n *marketplace.WebhookNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.rows[n.NotificationID] = &cp
	return nil
}

func (r *memWebhookRepo) FindByNotificationID(ctx context.Context, id string) (*marketplace.WebhookNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, marketplace.ErrNotificationNotFound
}

// memIntegrationRepo is read-only after construction, so no locking needed.
type memIntegrationRepo struct {
	byAccount map[string]*marketplace.Integration
}

func newMemIntegrationRepo(integs ...*marketplace.Integration) *memIntegrationRepo {
	r := &memIntegrationRepo{byAccount: make(map[string]*marketplace.Integration)}
	for _, i := range integs {
		r.byAccount[i.ExternalAccountID] = i
	}
	return r
}

func (r *memIntegrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.Integration, error) {
	for _, i := range r.byAccount {
		if i.ID == id {
			return i, nil
		}
	}
	return nil, marketplace.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) (*marketplace.Integration, error) {
	return nil, marketplace.ErrNoActiveIntegration
}

func (r *memIntegrationRepo) FindByExternalAccount(ctx context.Context, externalAccountID string) (*marketplace.Integration, error) {
	if i, ok := r.byAccount[externalAccountID]; ok {
		return i, nil
	}
	return nil, marketplace.ErrIntegrationNotFound
}

func (r *memIntegrationRepo) Save(ctx context.Context, integ *marketplace.Integration) error {
	return nil
}

func (r *memIntegrationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status marketplace.IntegrationStatus) error {
	return nil
}

func (r *memIntegrationRepo) UpdateLastFullSync(ctx context.Context, id uuid.UUID, at time.Time) error {
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

type fakeSyncer struct {
	mu     sync.Mutex
	synced []string
	err    error
}

func (f *fakeSyncer) SyncOne(ctx context.Context, integrationID uuid.UUID, externalItemID string) (*marketplace.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.synced = append(f.synced, externalItemID)
	return &marketplace.CatalogItem{ExternalItemID: externalItemID}, nil
}

type recordedOutcome struct {
	topic   string
	outcome marketplace.WebhookOutcome
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []recordedOutcome
}

func (f *fakeRecorder) RecordWebhook(ctx context.Context, topic string, outcome marketplace.WebhookOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, recordedOutcome{topic, outcome})
}

type fixture struct {
	svc      *Service
	repo     *memWebhookRepo
	syncer   *fakeSyncer
	syncLogs *memSyncLogRepo
	recorder *fakeRecorder
	integ    *marketplace.Integration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	integ := marketplace.NewIntegration(uuid.New(), "42", "a", "r", time.Now().Add(time.Hour), nil)
	repo := newMemWebhookRepo()
	syncer := &fakeSyncer{}
	syncLogs := &memSyncLogRepo{}
	recorder := &fakeRecorder{}
	svc := NewService(ServiceConfig{
		Notifications: repo,
		Integrations:  newMemIntegrationRepo(integ),
		Syncer:        syncer,
		SyncLogs:      syncLogs,
		Recorder:      recorder,
		Logger:        zap.NewNop(),
	})
	return &fixture{svc: svc, repo: repo, syncer: syncer, syncLogs: syncLogs, recorder: recorder, integ: integ}
}

func itemsNotification(id string) Notification {
	return Notification{
		ID:            id,
		Topic:         "items",
		Resource:      "/items/MLA555",
		UserID:        42,
		ApplicationID: 1234,
		Attempts:      1,
	}
}

func TestProcess_ItemsTopicSyncsListing(t *testing.T) {
	f := newFixture(t)

	outcome := f.svc.Process(context.Background(), itemsNotification("n-1"))
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, outcome)
	assert.Equal(t, []string{"MLA555"}, f.syncer.synced)

	row, err := f.repo.FindByNotificationID(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, row.Outcome)
	require.NotNil(t, row.ProcessedAt)
}

func TestProcess_DuplicateDeliveryAlreadyProcessed(t *testing.T) {
	f := newFixture(t)

	first := f.svc.Process(context.Background(), itemsNotification("n-dup"))
	second := f.svc.Process(context.Background(), itemsNotification("n-dup"))

	assert.Equal(t, marketplace.WebhookOutcomeSuccess, first)
	assert.Equal(t, marketplace.WebhookOutcomeAlreadyProcessed, second)
	assert.Len(t, f.syncer.synced, 1, "handler must run at most once per notification id")
}

func TestProcess_FastPathShortCircuits(t *testing.T) {
	integ := marketplace.NewIntegration(uuid.New(), "42", "a", "r", time.Now().Add(time.Hour), nil)
	repo := newMemWebhookRepo()
	svc := NewService(ServiceConfig{
		Notifications: repo,
		Integrations:  newMemIntegrationRepo(integ),
		Syncer:        &fakeSyncer{},
		SyncLogs:      &memSyncLogRepo{},
		Idempotency:   cache.NewMemoryIdempotencyStore(),
		Logger:        zap.NewNop(),
	})

	first := svc.Process(context.Background(), itemsNotification("n-fast"))
	second := svc.Process(context.Background(), itemsNotification("n-fast"))

	assert.Equal(t, marketplace.WebhookOutcomeSuccess, first)
	assert.Equal(t, marketplace.WebhookOutcomeAlreadyProcessed, second)
}

func TestProcess_UnknownTopicSkipped(t *testing.T) {
	f := newFixture(t)

	n := itemsNotification("n-odd")
	n.Topic = "shipments"
	outcome := f.svc.Process(context.Background(), n)

	assert.Equal(t, marketplace.WebhookOutcomeSkipped, outcome)
	assert.Empty(t, f.syncer.synced)

	row, err := f.repo.FindByNotificationID(context.Background(), "n-odd")
	require.NoError(t, err)
	assert.Equal(t, marketplace.WebhookOutcomeSkipped, row.Outcome)
	assert.Contains(t, row.ErrorDetail, "shipments")
}

func TestProcess_UnknownSellerSkipped(t *testing.T) {
	f := newFixture(t)

	n := itemsNotification("n-stranger")
	n.UserID = 9999
	outcome := f.svc.Process(context.Background(), n)

	assert.Equal(t, marketplace.WebhookOutcomeSkipped, outcome)
	assert.Empty(t, f.syncer.synced)
}

func TestProcess_SyncFailureAbsorbedIntoLog(t *testing.T) {
	f := newFixture(t)
	f.syncer.err = marketplace.ErrTransientNetwork

	outcome := f.svc.Process(context.Background(), itemsNotification("n-broken"))
	assert.Equal(t, marketplace.WebhookOutcomeError, outcome)

	row, err := f.repo.FindByNotificationID(context.Background(), "n-broken")
	require.NoError(t, err)
	assert.Equal(t, marketplace.WebhookOutcomeError, row.Outcome)
	assert.NotEmpty(t, row.ErrorDetail)
}

func TestProcess_OrdersTopicAudited(t *testing.T) {
	f := newFixture(t)

	n := Notification{ID: "n-order", Topic: "orders", Resource: "/orders/2000003508419500", UserID: 42, Attempts: 1}
	outcome := f.svc.Process(context.Background(), n)
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, outcome)
	assert.Empty(t, f.syncer.synced, "order notifications never trigger item sync")

	entries, _ := f.syncLogs.ListByIntegration(context.Background(), f.integ.ID, 10)
	require.Len(t, entries, 1)
	assert.Equal(t, "webhook_orders", entries[0].Operation)
}

func TestProcess_CreateFailureIsError(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("datastore down")

	outcome := f.svc.Process(context.Background(), itemsNotification("n-db"))
	assert.Equal(t, marketplace.WebhookOutcomeError, outcome)
	assert.Empty(t, f.syncer.synced, "handler must not run without a durable log row")
}

func TestProcess_CreateFailureThenRedeliveryProcessed(t *testing.T) {
	integ := marketplace.NewIntegration(uuid.New(), "42", "a", "r", time.Now().Add(time.Hour), nil)
	repo := newMemWebhookRepo()
	syncer := &fakeSyncer{}
	svc := NewService(ServiceConfig{
		Notifications: repo,
		Integrations:  newMemIntegrationRepo(integ),
		Syncer:        syncer,
		SyncLogs:      &memSyncLogRepo{},
		Idempotency:   cache.NewMemoryIdempotencyStore(),
		Logger:        zap.NewNop(),
	})

	repo.createErr = errors.New("datastore down")
	first := svc.Process(context.Background(), itemsNotification("n-retry"))
	assert.Equal(t, marketplace.WebhookOutcomeError, first)
	assert.Empty(t, syncer.synced)

	// The platform redelivers after the blip; no log row exists yet, so the
	// redelivery must process, not dedup.
	repo.createErr = nil
	second := svc.Process(context.Background(), itemsNotification("n-retry"))
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, second)
	assert.Equal(t, []string{"MLA555"}, syncer.synced)

	row, err := repo.FindByNotificationID(context.Background(), "n-retry")
	require.NoError(t, err)
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, row.Outcome)
}

func TestProcess_StaleMarkWithoutLogRowReprocessed(t *testing.T) {
	integ := marketplace.NewIntegration(uuid.New(), "42", "a", "r", time.Now().Add(time.Hour), nil)
	repo := newMemWebhookRepo()
	syncer := &fakeSyncer{}
	store := cache.NewMemoryIdempotencyStore()
	svc := NewService(ServiceConfig{
		Notifications: repo,
		Integrations:  newMemIntegrationRepo(integ),
		Syncer:        syncer,
		SyncLogs:      &memSyncLogRepo{},
		Idempotency:   store,
		Logger:        zap.NewNop(),
	})

	// A crash between marking and inserting leaves a mark that promises a
	// log row that does not exist.
	fresh, err := store.MarkProcessed(context.Background(), "n-ghost", time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)

	outcome := svc.Process(context.Background(), itemsNotification("n-ghost"))
	assert.Equal(t, marketplace.WebhookOutcomeSuccess, outcome)
	assert.Equal(t, []string{"MLA555"}, syncer.synced)
}

func TestProcess_OutcomesRecorded(t *testing.T) {
	f := newFixture(t)

	f.svc.Process(context.Background(), itemsNotification("n-m1"))
	n := itemsNotification("n-m2")
	n.Topic = "mystery"
	f.svc.Process(context.Background(), n)

	require.Len(t, f.recorder.recorded, 2)
	assert.Equal(t, recordedOutcome{"items", marketplace.WebhookOutcomeSuccess}, f.recorder.recorded[0])
	assert.Equal(t, recordedOutcome{"mystery", marketplace.WebhookOutcomeSkipped}, f.recorder.recorded[1])
}

func TestNotificationValidate(t *testing.T) {
	valid := itemsNotification("n-ok")
	assert.NoError(t, valid.Validate())

	missingID := valid
	missingID.ID = ""
	assert.Error(t, missingID.Validate())

	missingTopic := valid
	missingTopic.Topic = ""
	assert.Error(t, missingTopic.Validate())

	missingUser := valid
	missingUser.UserID = 0
	assert.Error(t, missingUser.Validate())
}

func TestResourceTail(t *testing.T) {
	assert.Equal(t, "MLA123", resourceTail("/items/MLA123"))
	assert.Equal(t, "MLA123", resourceTail("/items/MLA123/"))
	assert.Equal(t, "plain", resourceTail("plain"))
	assert.Equal(t, "", resourceTail("/"))
}
