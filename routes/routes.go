package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kubojah-Dan/CoinVista/controllers"
	"github.com/Kubojah-Dan/CoinVista/middleware"
	"github.com/Kubojah-Dan/CoinVista/services/alerts"
	"github.com/Kubojah-Dan/CoinVista/services/marketdata"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
	"github.com/Kubojah-Dan/CoinVista/services/pricehistory"
)

// SetupRoutes sets up all API routes
func SetupRoutes(
	router *gin.Engine,
	db *gorm.DB,
	alertStore alerts.Store,
	market *marketdata.Client,
	history *pricehistory.Store,
	hub *notify.Hub,
) {
	// Initialize controllers
	authController := controllers.NewAuthController(db)
	alertController := controllers.NewAlertController(alertStore)
	holdingController := controllers.NewHoldingController(db)
	watchlistController := controllers.NewWatchlistController(db)
	marketController := controllers.NewMarketController(market, history)
	wsController := controllers.NewWSController(hub)

	// API v1 group, rate limited per client IP
	rateLimiter := middleware.NewRateLimiter(100, 15*time.Minute)
	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)
			auth.GET("/me", middleware.JWTAuthMiddleware(), authController.Me)
		}

		// Market data routes (public)
		crypto := api.Group("/crypto")
		{
			crypto.GET("/markets", marketController.GetMarkets)
			crypto.GET("/search", marketController.SearchCoins)
			crypto.GET("/trending", marketController.GetTrending)
			crypto.GET("/global", marketController.GetGlobal)
			crypto.GET("/coins/:id", marketController.GetCoin)
			crypto.GET("/coins/:id/chart", marketController.GetCoinChart)
			crypto.GET("/coins/:id/history", marketController.GetCoinHistory)
		}

		// Alert routes (authenticated)
		alertRoutes := api.Group("/alerts")
		alertRoutes.Use(middleware.JWTAuthMiddleware())
		{
			alertRoutes.GET("", alertController.GetAlerts)
			alertRoutes.POST("", alertController.CreateAlert)
			alertRoutes.DELETE("/:id", alertController.DeleteAlert)
		}

		// Portfolio holding routes (authenticated)
		holdingRoutes := api.Group("/holdings")
		holdingRoutes.Use(middleware.JWTAuthMiddleware())
		{
			holdingRoutes.GET("", holdingController.GetHoldings)
			holdingRoutes.POST("", holdingController.CreateHolding)
			holdingRoutes.PUT("/:id", holdingController.UpdateHolding)
			holdingRoutes.DELETE("/:id", holdingController.DeleteHolding)
		}

		// Watchlist routes (authenticated)
		watchlistRoutes := api.Group("/watchlist")
		watchlistRoutes.Use(middleware.JWTAuthMiddleware())
		{
			watchlistRoutes.GET("", watchlistController.GetWatchlist)
			watchlistRoutes.POST("", watchlistController.AddToWatchlist)
			watchlistRoutes.DELETE("/:coinId", watchlistController.RemoveFromWatchlist)
		}
	}

	// WebSocket endpoint, authenticated via token query parameter
	router.GET("/ws", wsController.Connect)
}
