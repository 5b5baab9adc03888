package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/middleware"
	"github.com/Kubojah-Dan/CoinVista/models"
	"github.com/Kubojah-Dan/CoinVista/services/alerts"
)

// AlertController handles price alert CRUD
type AlertController struct {
	store alerts.Store
}

// NewAlertController creates a new alert controller
func NewAlertController(store alerts.Store) *AlertController {
	return &AlertController{store: store}
}

type createAlertRequest struct {
	Symbol      string          `json:"symbol"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Direction   string          `json:"direction"`
}

// GetAlerts returns all alerts owned by the authenticated user
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	userAlerts, err := ac.store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	if userAlerts == nil {
		userAlerts = []models.Alert{}
	}

	c.JSON(http.StatusOK, gin.H{"data": userAlerts})
}

// CreateAlert creates a price alert for the authenticated user
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert payload"})
		return
	}

	symbol := strings.ToLower(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}
	if !models.IsValidDirection(req.Direction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Direction must be 'above' or 'below'"})
		return
	}
	if !req.TargetPrice.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target price must be positive"})
		return
	}

	alert := models.Alert{
		UserID:      userID,
		Symbol:      symbol,
		TargetPrice: req.TargetPrice,
		Direction:   req.Direction,
	}

	if err := ac.store.Create(c.Request.Context(), &alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// DeleteAlert removes an alert owned by the authenticated user
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := ac.store.Delete(c.Request.Context(), uint(id), userID); err != nil {
		if errors.Is(err, alerts.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}
