package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kubojah-Dan/CoinVista/services/marketdata"
	"github.com/Kubojah-Dan/CoinVista/services/pricehistory"
)

// MarketController proxies CoinGecko market data and serves the local
// price history cache
type MarketController struct {
	client  *marketdata.Client
	history *pricehistory.Store
}

// NewMarketController creates a new market controller. history may be nil.
func NewMarketController(client *marketdata.Client, history *pricehistory.Store) *MarketController {
	return &MarketController{client: client, history: history}
}

// upstreamError maps client sentinel errors to HTTP statuses
func upstreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, marketdata.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Upstream rate limit reached, try again shortly"})
	case errors.Is(err, marketdata.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Market data provider unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch market data"})
	}
}

// GetMarkets returns the top coins by market cap
// GET /api/v1/crypto/markets
func (mc *MarketController) GetMarkets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 250 {
		perPage = 50
	}
	currency := c.DefaultQuery("currency", "usd")

	coins, err := mc.client.TopCoins(c.Request.Context(), currency, page, perPage)
	if err != nil {
		upstreamError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": coins})
}

// GetCoin returns detailed information for one coin
// GET /api/v1/crypto/coins/:id
func (mc *MarketController) GetCoin(c *gin.Context) {
	raw, err := mc.client.CoinDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// GetCoinChart returns historical chart data for one coin
// GET /api/v1/crypto/coins/:id/chart
func (mc *MarketController) GetCoinChart(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days < 1 || days > 365 {
		days = 7
	}
	currency := c.DefaultQuery("currency", "usd")

	raw, err := mc.client.MarketChart(c.Request.Context(), c.Param("id"), currency, days)
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// GetCoinHistory returns locally cached price points for one coin
// GET /api/v1/crypto/coins/:id/history
func (mc *MarketController) GetCoinHistory(c *gin.Context) {
	if mc.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Price history is not enabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	points, err := mc.history.Recent(c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read price history"})
		return
	}
	if points == nil {
		points = []pricehistory.PricePoint{}
	}

	c.JSON(http.StatusOK, gin.H{"data": points})
}

// SearchCoins searches coins by name or symbol
// GET /api/v1/crypto/search
func (mc *MarketController) SearchCoins(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	raw, err := mc.client.Search(c.Request.Context(), query)
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// GetTrending returns currently trending coins
// GET /api/v1/crypto/trending
func (mc *MarketController) GetTrending(c *gin.Context) {
	raw, err := mc.client.Trending(c.Request.Context())
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// GetGlobal returns global market statistics
// GET /api/v1/crypto/global
func (mc *MarketController) GetGlobal(c *gin.Context) {
	raw, err := mc.client.Global(c.Request.Context())
	if err != nil {
		upstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
