package pricehistory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PricePoint is one observed price for a coin
type PricePoint struct {
	CoinID     string    `json:"coin_id"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store keeps a local history of broadcast prices in SQLite so recent charts
// can be served without another upstream round trip.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and if necessary creates) the price history database
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price history db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping price history db: %w", err)
	}

	store := &Store{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		CREATE TABLE IF NOT EXISTS price_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			coin_id VARCHAR NOT NULL,
			price REAL NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create price_points table: %w", err)
	}

	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_price_points_coin ON price_points(coin_id, recorded_at DESC)")
	return nil
}

// RecordPoints inserts a batch of price points
func (s *Store) RecordPoints(points []PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.db.Prepare("INSERT INTO price_points (coin_id, price, recorded_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.CoinID, p.Price, p.RecordedAt); err != nil {
			return fmt.Errorf("failed to insert price point for %s: %w", p.CoinID, err)
		}
	}
	return nil
}

// Recent returns the newest price points for a coin, newest first
func (s *Store) Recent(coinID string, limit int) ([]PricePoint, error) {
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT coin_id, price, recorded_at FROM price_points WHERE coin_id = ? ORDER BY recorded_at DESC LIMIT ?",
		coinID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.CoinID, &p.Price, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Prune removes points older than the retention window
func (s *Store) Prune(olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM price_points WHERE recorded_at < ?", olderThan)
	return err
}
