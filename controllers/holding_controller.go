package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Kubojah-Dan/CoinVista/middleware"
	"github.com/Kubojah-Dan/CoinVista/models"
)

// HoldingController handles portfolio holdings
type HoldingController struct {
	db *gorm.DB
}

// NewHoldingController creates a new holding controller
func NewHoldingController(db *gorm.DB) *HoldingController {
	return &HoldingController{db: db}
}

type holdingRequest struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

// GetHoldings returns the authenticated user's holdings
// GET /api/v1/holdings
func (hc *HoldingController) GetHoldings(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var holdings []models.Holding
	if err := hc.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&holdings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch holdings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": holdings})
}

// CreateHolding adds a holding to the user's portfolio
// POST /api/v1/holdings
func (hc *HoldingController) CreateHolding(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holding payload"})
		return
	}

	symbol := strings.ToLower(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}
	if req.PurchasePrice.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Purchase price cannot be negative"})
		return
	}

	holding := models.Holding{
		UserID:        userID,
		Symbol:        symbol,
		Name:          strings.TrimSpace(req.Name),
		Amount:        req.Amount,
		PurchasePrice: req.PurchasePrice,
	}

	if err := hc.db.Create(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create holding"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": holding})
}

// UpdateHolding updates amount or purchase price of a holding
// PUT /api/v1/holdings/:id
func (hc *HoldingController) UpdateHolding(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holding id"})
		return
	}

	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holding payload"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}

	var holding models.Holding
	if err := hc.db.Where("id = ? AND user_id = ?", id, userID).First(&holding).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Holding not found"})
		return
	}

	holding.Amount = req.Amount
	if !req.PurchasePrice.IsNegative() {
		holding.PurchasePrice = req.PurchasePrice
	}

	if err := hc.db.Save(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update holding"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": holding})
}

// DeleteHolding removes a holding from the user's portfolio
// DELETE /api/v1/holdings/:id
func (hc *HoldingController) DeleteHolding(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holding id"})
		return
	}

	result := hc.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Holding{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete holding"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Holding not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Holding deleted"})
}
