package pricehistory

import (
	"path/filepath"
	"testing"
	"time"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := setupStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	points := []PricePoint{
		{CoinID: "bitcoin", Price: 49000, RecordedAt: base},
		{CoinID: "bitcoin", Price: 50000, RecordedAt: base.Add(30 * time.Second)},
		{CoinID: "ethereum", Price: 3000, RecordedAt: base},
	}
	if err := store.RecordPoints(points); err != nil {
		t.Fatalf("record points: %v", err)
	}

	recent, err := store.Recent("bitcoin", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 bitcoin points, got %d", len(recent))
	}
	if recent[0].Price != 50000 {
		t.Errorf("expected newest point first, got %+v", recent[0])
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := setupStore(t)

	base := time.Now().UTC()
	var points []PricePoint
	for i := 0; i < 5; i++ {
		points = append(points, PricePoint{
			CoinID:     "bitcoin",
			Price:      float64(49000 + i),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := store.RecordPoints(points); err != nil {
		t.Fatalf("record points: %v", err)
	}

	recent, err := store.Recent("bitcoin", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 points, got %d", len(recent))
	}
}

func TestPrune(t *testing.T) {
	store := setupStore(t)

	base := time.Now().UTC()
	points := []PricePoint{
		{CoinID: "bitcoin", Price: 48000, RecordedAt: base.Add(-48 * time.Hour)},
		{CoinID: "bitcoin", Price: 50000, RecordedAt: base},
	}
	if err := store.RecordPoints(points); err != nil {
		t.Fatalf("record points: %v", err)
	}

	if err := store.Prune(base.Add(-24 * time.Hour)); err != nil {
		t.Fatalf("prune: %v", err)
	}

	recent, err := store.Recent("bitcoin", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Price != 50000 {
		t.Fatalf("expected only the fresh point to survive, got %+v", recent)
	}
}

func TestRecordEmptyBatch(t *testing.T) {
	store := setupStore(t)
	if err := store.RecordPoints(nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
}
