package models

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User represents a registered user
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetPassword hashes and stores the given plaintext password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares a plaintext password against the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Holding represents a portfolio position
type Holding struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"index" json:"user_id"`
	User          User            `gorm:"foreignKey:UserID" json:"-"`
	Symbol        string          `gorm:"not null" json:"symbol"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `gorm:"type:decimal(30,12);not null" json:"amount"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"purchase_price"`
	CreatedAt     time.Time       `json:"created_at"`
}

// WatchlistItem represents a coin on a user's watchlist
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_user_coin,unique" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CoinID    string    `gorm:"index:idx_user_coin,unique;not null" json:"coin_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MigrateUserModels runs database migrations for user-related models
func MigrateUserModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Holding{},
		&WatchlistItem{},
	)
}
