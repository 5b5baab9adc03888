package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kubojah-Dan/CoinVista/config"
	"github.com/Kubojah-Dan/CoinVista/models"
	"github.com/Kubojah-Dan/CoinVista/routes"
	"github.com/Kubojah-Dan/CoinVista/scheduler"
	"github.com/Kubojah-Dan/CoinVista/services/alerts"
	"github.com/Kubojah-Dan/CoinVista/services/marketdata"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
	"github.com/Kubojah-Dan/CoinVista/services/pricehistory"
)

// dbInitialized tracks whether the database has been successfully initialized.
// Guarded by dbInitMutex so the /ready endpoint can check it from any goroutine.
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  CoinVista API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints first so the platform can detect the
	// service is up while the database initializes in the background
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize database and setup routes in background
	hub := notify.NewHub()
	go hub.Run()

	var jobScheduler *scheduler.Scheduler
	var historyStore *pricehistory.Store
	var mongoStore *alerts.MongoStore

	go func() {
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		log.Println("Running database migrations...")
		if err := models.MigrateUserModels(db); err != nil {
			log.Printf("ERROR: User migration failed: %v", err)
		}
		if err := models.MigrateAlertModels(db); err != nil {
			log.Printf("ERROR: Alert migration failed: %v", err)
		}

		// Alert store: MongoDB when configured, otherwise PostgreSQL
		var alertStore alerts.Store
		if cfg.MongoURI != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			ms, err := alerts.NewMongoStore(ctx, cfg.MongoURI)
			cancel()
			if err != nil {
				log.Printf("MongoDB not available, falling back to PostgreSQL alert store: %v", err)
				alertStore = alerts.NewGormStore(db)
			} else {
				mongoStore = ms
				alertStore = ms
			}
		} else {
			alertStore = alerts.NewGormStore(db)
		}

		// Local price history cache
		historyStore, err = pricehistory.Open(cfg.PriceHistoryPath)
		if err != nil {
			log.Printf("Warning: Price history disabled: %v", err)
			historyStore = nil
		}

		market := marketdata.NewClient(cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		routes.SetupRoutes(router, db, alertStore, market, historyStore, hub)

		jobScheduler = scheduler.New(
			market,
			alertStore,
			hub,
			historyStore,
			time.Duration(cfg.PricePollSeconds)*time.Second,
			time.Duration(cfg.AlertPollSeconds)*time.Second,
		)
		if err := jobScheduler.Start(); err != nil {
			log.Printf("ERROR: Failed to start scheduler: %v", err)
		}

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, &jobScheduler, hub, &historyStore, &mongoStore)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "CoinVista API",
			"version": "1.0.0",
		})
	})

	// Liveness probe
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown stops the scheduler, hub and server in order
func gracefulShutdown(server *http.Server, jobScheduler **scheduler.Scheduler, hub *notify.Hub, historyStore **pricehistory.Store, mongoStore **alerts.MongoStore) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first so no new cycles start
	if *jobScheduler != nil {
		(*jobScheduler).Stop()
	}

	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if *historyStore != nil {
		(*historyStore).Close()
	}

	if *mongoStore != nil {
		(*mongoStore).Close(ctx)
		log.Println("MongoDB connection closed")
	}

	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
