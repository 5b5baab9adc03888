package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kubojah-Dan/CoinVista/middleware"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
)

// WSController upgrades WebSocket connections for authenticated users
type WSController struct {
	hub *notify.Hub
}

// NewWSController creates a new WebSocket controller
func NewWSController(hub *notify.Hub) *WSController {
	return &WSController{hub: hub}
}

// Connect authenticates via the token query parameter and hands the
// connection to the hub. Browsers cannot set headers on WebSocket upgrades,
// so the bearer token travels as ?token=.
// GET /ws?token=<jwt>
func (wsc *WSController) Connect(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required"})
		return
	}

	claims, err := middleware.ParseToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	wsc.hub.ServeWS(c.Writer, c.Request, claims.UserID)
}
