package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kubojah-Dan/CoinVista/middleware"
	"github.com/Kubojah-Dan/CoinVista/models"
)

// WatchlistController handles the per-user coin watchlist
type WatchlistController struct {
	db *gorm.DB
}

// NewWatchlistController creates a new watchlist controller
func NewWatchlistController(db *gorm.DB) *WatchlistController {
	return &WatchlistController{db: db}
}

// GetWatchlist returns the authenticated user's watchlist
// GET /api/v1/watchlist
func (wc *WatchlistController) GetWatchlist(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var items []models.WatchlistItem
	if err := wc.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// AddToWatchlist adds a coin to the watchlist. Adding a coin twice is a no-op.
// POST /api/v1/watchlist
func (wc *WatchlistController) AddToWatchlist(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		CoinID string `json:"coinId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid watchlist payload"})
		return
	}

	coinID := strings.ToLower(strings.TrimSpace(req.CoinID))
	if coinID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coinId is required"})
		return
	}

	var existing models.WatchlistItem
	if err := wc.db.Where("user_id = ? AND coin_id = ?", userID, coinID).First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{"data": existing})
		return
	}

	item := models.WatchlistItem{UserID: userID, CoinID: coinID}
	if err := wc.db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to watchlist"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

// RemoveFromWatchlist removes a coin from the watchlist
// DELETE /api/v1/watchlist/:coinId
func (wc *WatchlistController) RemoveFromWatchlist(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	coinID := strings.ToLower(strings.TrimSpace(c.Param("coinId")))

	result := wc.db.Where("user_id = ? AND coin_id = ?", userID, coinID).Delete(&models.WatchlistItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from watchlist"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coin not in watchlist"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Removed from watchlist"})
}
