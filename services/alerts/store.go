package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Kubojah-Dan/CoinVista/models"
)

// ErrAlertNotFound is returned when an alert does not exist, belongs to a
// different user, or was already triggered. Races between the poll path and
// concurrent deletion surface as this error and are treated as a no-op.
var ErrAlertNotFound = errors.New("alert not found")

// Store is the persistence interface for alerts. It is shared by the
// user-facing CRUD path and the background poll path; MarkTriggered is the
// only mutation contended by both.
type Store interface {
	// Create persists a new alert and assigns its ID
	Create(ctx context.Context, alert *models.Alert) error

	// ListByUser returns all alerts owned by a user, newest first
	ListByUser(ctx context.Context, userID uint) ([]models.Alert, error)

	// Delete removes an alert owned by the given user. Returns
	// ErrAlertNotFound if the alert is absent or owned by someone else.
	Delete(ctx context.Context, id, userID uint) error

	// ListActive returns all alerts with triggered == false. Snapshot
	// consistency is not required; callers tolerate concurrent changes.
	ListActive(ctx context.Context) ([]models.Alert, error)

	// MarkTriggered atomically flips triggered from false to true
	// (compare-and-set). Exactly one caller wins; losers and callers racing
	// a deletion get ErrAlertNotFound.
	MarkTriggered(ctx context.Context, id uint, observedPrice decimal.Decimal, at time.Time) (*models.Alert, error)

	// RecordObservedPrice updates lastObservedPrice, best effort. Failures
	// are swallowed: the field is purely informational.
	RecordObservedPrice(ctx context.Context, id uint, price decimal.Decimal)
}

// GormStore is the PostgreSQL-backed alert store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates an alert store backed by a gorm database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, alert *models.Alert) error {
	return s.db.WithContext(ctx).Create(alert).Error
}

func (s *GormStore) ListByUser(ctx context.Context, userID uint) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *GormStore) Delete(ctx context.Context, id, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Alert{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("triggered = ?", false).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *GormStore) MarkTriggered(ctx context.Context, id uint, observedPrice decimal.Decimal, at time.Time) (*models.Alert, error) {
	// Conditioning the UPDATE on triggered = false makes the transition a
	// compare-and-set: overlapping pollers and concurrent deletion both
	// resolve to zero affected rows.
	result := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND triggered = ?", id, false).
		Updates(map[string]interface{}{
			"triggered":           true,
			"triggered_at":        at,
			"last_observed_price": observedPrice,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlertNotFound
	}

	var alert models.Alert
	if err := s.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (s *GormStore) RecordObservedPrice(ctx context.Context, id uint, price decimal.Decimal) {
	// Deliberately ignores errors: a deleted record simply stops being
	// observed.
	s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ?", id).
		Update("last_observed_price", price)
}
