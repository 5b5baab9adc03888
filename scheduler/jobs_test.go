package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/models"
	"github.com/Kubojah-Dan/CoinVista/services/alerts"
	"github.com/Kubojah-Dan/CoinVista/services/marketdata"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
)

// fakeMarket serves a scripted sequence of price batches and records the
// symbols requested in each cycle.
type fakeMarket struct {
	mu       sync.Mutex
	batches  []priceBatch
	requests [][]string
}

type priceBatch struct {
	prices map[string]decimal.Decimal
	err    error
}

func (m *fakeMarket) FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, append([]string(nil), ids...))
	if len(m.batches) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch.prices, batch.err
}

func (m *fakeMarket) TopCoins(ctx context.Context, currency string, page, perPage int) ([]marketdata.Coin, error) {
	return nil, nil
}

// memStore is an in-memory alerts.Store with the same compare-and-set
// semantics as the database implementations.
type memStore struct {
	mu       sync.Mutex
	alerts   map[uint]*models.Alert
	nextID   uint
	observed int
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[uint]*models.Alert), nextID: 1}
}

func (s *memStore) Create(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = s.nextID
	s.nextID++
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *memStore) ListByUser(ctx context.Context, userID uint) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, id, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return alerts.ErrAlertNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *memStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if !a.Triggered {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) MarkTriggered(ctx context.Context, id uint, observedPrice decimal.Decimal, at time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Triggered {
		return nil, alerts.ErrAlertNotFound
	}
	a.Triggered = true
	a.TriggeredAt = &at
	a.LastObservedPrice = observedPrice
	copied := *a
	return &copied, nil
}

func (s *memStore) RecordObservedPrice(ctx context.Context, id uint, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		a.LastObservedPrice = price
		s.observed++
	}
}

// recordingNotifier captures alert notifications
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notifiedAlert
}

type notifiedAlert struct {
	userID  uint
	payload notify.AlertPayload
}

func (n *recordingNotifier) Broadcast(msgType string, data interface{})     {}
func (n *recordingNotifier) SendCoinUpdate(coinID string, data interface{}) {}

func (n *recordingNotifier) NotifyAlert(userID uint, payload notify.AlertPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, notifiedAlert{userID: userID, payload: payload})
}

func (n *recordingNotifier) notified() []notifiedAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifiedAlert(nil), n.alerts...)
}

func newTestScheduler(market *fakeMarket, store *memStore, notifier *recordingNotifier) *Scheduler {
	return New(market, store, notifier, nil, DefaultPriceInterval, DefaultAlertInterval)
}

func mustCreate(t *testing.T, store *memStore, userID uint, symbol, direction, target string) *models.Alert {
	t.Helper()
	alert := &models.Alert{
		UserID:      userID,
		Symbol:      symbol,
		Direction:   direction,
		TargetPrice: decimal.RequireFromString(target),
	}
	if err := store.Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return alert
}

func prices(pairs ...string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return out
}

func TestAlertTriggersOnceOnThresholdCrossing(t *testing.T) {
	market := &fakeMarket{batches: []priceBatch{
		{prices: prices("bitcoin", "49000")},
		{prices: prices("bitcoin", "50000")},
		{prices: prices("bitcoin", "51000")},
	}}
	store := newMemStore()
	notifier := &recordingNotifier{}
	s := newTestScheduler(market, store, notifier)

	alert := mustCreate(t, store, 1, "bitcoin", models.DirectionAbove, "50000")

	s.checkAlerts() // 49000: below threshold
	s.checkAlerts() // 50000: equality triggers
	s.checkAlerts() // 51000: already triggered, no active alerts remain

	notified := notifier.notified()
	if len(notified) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(notified))
	}
	got := notified[0]
	if got.userID != 1 {
		t.Errorf("notified wrong user: %d", got.userID)
	}
	if got.payload.AlertID != alert.ID {
		t.Errorf("notified wrong alert: %d", got.payload.AlertID)
	}
	if !got.payload.ObservedPrice.Equal(decimal.RequireFromString("50000")) {
		t.Errorf("expected observed price 50000, got %s", got.payload.ObservedPrice)
	}
	if got.payload.Direction != models.DirectionAbove {
		t.Errorf("unexpected direction %q", got.payload.Direction)
	}

	stored := store.alerts[alert.ID]
	if !stored.Triggered || stored.TriggeredAt == nil {
		t.Error("alert not marked triggered in store")
	}
}

func TestOppositeDirectionsBetweenThresholdsNeitherFires(t *testing.T) {
	market := &fakeMarket{batches: []priceBatch{
		{prices: prices("bitcoin", "45000")},
	}}
	store := newMemStore()
	notifier := &recordingNotifier{}
	s := newTestScheduler(market, store, notifier)

	mustCreate(t, store, 1, "bitcoin", models.DirectionAbove, "50000")
	mustCreate(t, store, 1, "bitcoin", models.DirectionBelow, "40000")

	s.checkAlerts()

	if got := notifier.notified(); len(got) != 0 {
		t.Fatalf("expected no notifications at 45000, got %d", len(got))
	}
}

func TestUpstreamFailureAbandonsCycle(t *testing.T) {
	market := &fakeMarket{batches: []priceBatch{
		{err: marketdata.ErrUpstreamUnavailable},
		{prices: prices("bitcoin", "51000")},
	}}
	store := newMemStore()
	notifier := &recordingNotifier{}
	s := newTestScheduler(market, store, notifier)

	alert := mustCreate(t, store, 1, "bitcoin", models.DirectionAbove, "50000")

	s.checkAlerts()

	if store.observed != 0 {
		t.Errorf("failed cycle must not write observed prices, got %d writes", store.observed)
	}
	if store.alerts[alert.ID].Triggered {
		t.Error("failed cycle must not trigger alerts")
	}
	if got := notifier.notified(); len(got) != 0 {
		t.Fatalf("failed cycle must not notify, got %d", len(got))
	}

	// Next cycle recovers with fresh data
	s.checkAlerts()
	if got := notifier.notified(); len(got) != 1 {
		t.Fatalf("expected recovery on next cycle, got %d notifications", len(got))
	}
}

// deleteAfterListStore removes an alert right after ListActive returns it,
// simulating a user deleting the alert mid-cycle.
type deleteAfterListStore struct {
	*memStore
	victimID uint
	ownerID  uint
}

func (s *deleteAfterListStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	active, err := s.memStore.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.memStore.Delete(ctx, s.victimID, s.ownerID)
	return active, nil
}

func TestDeletedAlertLosesRaceSilently(t *testing.T) {
	market := &fakeMarket{batches: []priceBatch{
		{prices: prices("bitcoin", "51000")},
	}}
	mem := newMemStore()
	notifier := &recordingNotifier{}

	alert := mustCreate(t, mem, 1, "bitcoin", models.DirectionAbove, "50000")
	store := &deleteAfterListStore{memStore: mem, victimID: alert.ID, ownerID: 1}
	s := New(market, store, notifier, nil, DefaultPriceInterval, DefaultAlertInterval)

	s.checkAlerts()

	if got := notifier.notified(); len(got) != 0 {
		t.Fatalf("deleted alert must not notify, got %d", len(got))
	}
	if _, exists := mem.alerts[alert.ID]; exists {
		t.Fatal("alert should remain deleted after the cycle")
	}
}

func TestSymbolsFetchedOncePerCycle(t *testing.T) {
	market := &fakeMarket{batches: []priceBatch{
		{prices: prices("bitcoin", "45000", "ethereum", "3000")},
	}}
	store := newMemStore()
	notifier := &recordingNotifier{}
	s := newTestScheduler(market, store, notifier)

	mustCreate(t, store, 1, "bitcoin", models.DirectionAbove, "50000")
	mustCreate(t, store, 2, "bitcoin", models.DirectionAbove, "60000")
	mustCreate(t, store, 3, "ethereum", models.DirectionBelow, "2000")

	s.checkAlerts()

	if len(market.requests) != 1 {
		t.Fatalf("expected a single fetch per cycle, got %d", len(market.requests))
	}
}

func TestMarkTriggeredIsIdempotent(t *testing.T) {
	store := newMemStore()
	alert := mustCreate(t, store, 1, "bitcoin", models.DirectionAbove, "50000")

	price := decimal.RequireFromString("51000")
	now := time.Now().UTC()

	if _, err := store.MarkTriggered(context.Background(), alert.ID, price, now); err != nil {
		t.Fatalf("first MarkTriggered: %v", err)
	}
	if _, err := store.MarkTriggered(context.Background(), alert.ID, price, now); err != alerts.ErrAlertNotFound {
		t.Fatalf("second MarkTriggered should lose the compare-and-set, got %v", err)
	}
}

func TestEmptyAlertSetSkipsFetch(t *testing.T) {
	market := &fakeMarket{}
	store := newMemStore()
	notifier := &recordingNotifier{}
	s := newTestScheduler(market, store, notifier)

	s.checkAlerts()

	if len(market.requests) != 0 {
		t.Fatalf("expected no upstream fetch with no active alerts, got %d", len(market.requests))
	}
}
