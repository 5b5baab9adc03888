package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Kubojah-Dan/CoinVista/services/alerts"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
	"github.com/Kubojah-Dan/CoinVista/services/pricehistory"
)

// broadcastPrices fetches the top coins and pushes them to every connected
// client. A failed fetch skips the cycle; stale data is never re-broadcast.
func (s *Scheduler) broadcastPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), FetchTimeout)
	defer cancel()

	coins, err := s.market.TopCoins(ctx, "usd", 1, 50)
	if err != nil {
		log.Printf("Price broadcast skipped: %v", err)
		return
	}

	s.notifier.Broadcast("prices", coins)

	now := time.Now().UTC()
	points := make([]pricehistory.PricePoint, 0, len(coins))
	for _, coin := range coins {
		s.notifier.SendCoinUpdate(coin.ID, coin)
		price, _ := coin.CurrentPrice.Float64()
		points = append(points, pricehistory.PricePoint{
			CoinID:     coin.ID,
			Price:      price,
			RecordedAt: now,
		})
	}

	if s.history != nil {
		if err := s.history.RecordPoints(points); err != nil {
			log.Printf("Failed to record price history: %v", err)
		}
	}
}

// checkAlerts evaluates every active alert against a fresh batch of prices.
// Prices are fetched once per distinct symbol regardless of how many alerts
// reference it. If the fetch fails the whole cycle is abandoned: no alert is
// evaluated against stale or partial data.
func (s *Scheduler) checkAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), FetchTimeout)
	defer cancel()

	active, err := s.store.ListActive(ctx)
	if err != nil {
		log.Printf("Alert check skipped: failed to list active alerts: %v", err)
		return
	}
	if len(active) == 0 {
		return
	}

	symbols := make([]string, 0, len(active))
	for _, alert := range active {
		symbols = append(symbols, alert.Symbol)
	}

	prices, err := s.market.FetchPrices(ctx, symbols)
	if err != nil {
		log.Printf("Alert cycle abandoned: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, alert := range active {
		price, ok := prices[alert.Symbol]
		if !ok {
			continue
		}

		s.store.RecordObservedPrice(ctx, alert.ID, price)

		if alerts.Evaluate(alert, price) != alerts.ShouldTrigger {
			continue
		}

		triggered, err := s.store.MarkTriggered(ctx, alert.ID, price, now)
		if err != nil {
			if errors.Is(err, alerts.ErrAlertNotFound) {
				// Lost the race to a deletion or a concurrent trigger
				continue
			}
			log.Printf("Failed to mark alert %d triggered: %v", alert.ID, err)
			continue
		}

		log.Printf("Alert %d triggered for user %d: %s %s %s at %s",
			triggered.ID, triggered.UserID, triggered.Symbol, triggered.Direction,
			triggered.TargetPrice.String(), price.String())

		s.notifier.NotifyAlert(triggered.UserID, notify.AlertPayload{
			AlertID:       triggered.ID,
			Symbol:        triggered.Symbol,
			Direction:     triggered.Direction,
			TargetPrice:   triggered.TargetPrice,
			ObservedPrice: price,
			TriggeredAt:   now,
		})
	}
}
