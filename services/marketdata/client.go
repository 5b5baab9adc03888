package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for upstream failure modes. Callers decide whether to back
// off (rate limit) or wait for the next scheduled cycle (unavailable).
var (
	ErrUpstreamUnavailable = errors.New("market data upstream unavailable")
	ErrRateLimited         = errors.New("market data rate limited")
)

const (
	DefaultBaseURL        = "https://api.coingecko.com/api/v3"
	DefaultRequestTimeout = 10 * time.Second
)

// Coin represents market data for a single coin as returned by the
// /coins/markets endpoint.
type Coin struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	CurrentPrice             decimal.Decimal `json:"current_price"`
	PriceChangePercentage24h float64         `json:"price_change_percentage_24h"`
	MarketCap                decimal.Decimal `json:"market_cap"`
	LastUpdated              string          `json:"last_updated"`
}

// Client fetches market data from CoinGecko. It does not retry on its own:
// retry policy belongs to the caller so a single cycle never compounds delay.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a market data client. baseURL may be empty to use the
// public CoinGecko API.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// FetchPrices returns the current price for every requested coin id. The
// result is complete or the call fails: callers must never see a partial map.
// Duplicate ids are collapsed into a single upstream round trip.
func (c *Client) FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	distinct := dedupe(ids)
	if len(distinct) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(distinct, ","))
	params.Set("sparkline", "false")

	var coins []Coin
	if err := c.get(ctx, "/coins/markets", params, &coins); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(coins))
	for _, coin := range coins {
		prices[coin.ID] = coin.CurrentPrice
	}

	for _, id := range distinct {
		if _, ok := prices[id]; !ok {
			return nil, fmt.Errorf("%w: no price returned for %s", ErrUpstreamUnavailable, id)
		}
	}

	return prices, nil
}

// TopCoins returns the top coins by market cap
func (c *Client) TopCoins(ctx context.Context, currency string, page, perPage int) ([]Coin, error) {
	if currency == "" {
		currency = "usd"
	}
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("sparkline", "false")

	var coins []Coin
	if err := c.get(ctx, "/coins/markets", params, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// CoinDetails returns detailed information for a single coin
func (c *Client) CoinDetails(ctx context.Context, id string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("market_data", "true")
	params.Set("community_data", "false")
	params.Set("developer_data", "false")

	var raw json.RawMessage
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// MarketChart returns historical chart data for a coin
func (c *Client) MarketChart(ctx context.Context, id, currency string, days int) (json.RawMessage, error) {
	if currency == "" {
		currency = "usd"
	}
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("days", strconv.Itoa(days))

	var raw json.RawMessage
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Search searches coins by name or symbol
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)

	var raw json.RawMessage
	if err := c.get(ctx, "/search", params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Trending returns currently trending coins
func (c *Client) Trending(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/search/trending", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Global returns global market statistics
func (c *Client) Global(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/global", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// get performs a single GET request and classifies failures. Timeouts and
// transport errors are reported as ErrUpstreamUnavailable, HTTP 429 as
// ErrRateLimited.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// dedupe returns the sorted distinct ids
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}
	sort.Strings(distinct)
	return distinct
}
