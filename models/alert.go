package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert direction constants
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Alert represents a one-shot price threshold alert. Triggered is monotonic:
// it moves from false to true exactly once and is never reset.
type Alert struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"index" json:"user_id"`
	User              User            `gorm:"foreignKey:UserID" json:"-"`
	Symbol            string          `gorm:"index;not null" json:"symbol"`
	TargetPrice       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"target_price"`
	Direction         string          `gorm:"not null" json:"direction"`
	Triggered         bool            `gorm:"default:false;index" json:"triggered"`
	TriggeredAt       *time.Time      `json:"triggered_at"`
	LastObservedPrice decimal.Decimal `gorm:"type:decimal(20,8)" json:"last_observed_price"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ValidDirections returns the accepted alert directions
func ValidDirections() []string {
	return []string{DirectionAbove, DirectionBelow}
}

// IsValidDirection checks if the direction is valid
func IsValidDirection(direction string) bool {
	for _, valid := range ValidDirections() {
		if direction == valid {
			return true
		}
	}
	return false
}

// MigrateAlertModels runs database migrations for alert models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
