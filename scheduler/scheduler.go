package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/services/alerts"
	"github.com/Kubojah-Dan/CoinVista/services/marketdata"
	"github.com/Kubojah-Dan/CoinVista/services/notify"
	"github.com/Kubojah-Dan/CoinVista/services/pricehistory"
)

// Default cadences and the per-cycle budget for upstream calls
const (
	DefaultPriceInterval = 30 * time.Second
	DefaultAlertInterval = 60 * time.Second
	FetchTimeout         = 15 * time.Second
)

// MarketData is the slice of the market client the scheduler needs
type MarketData interface {
	TopCoins(ctx context.Context, currency string, page, perPage int) ([]marketdata.Coin, error)
	FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// Notifier delivers messages to connected clients
type Notifier interface {
	Broadcast(msgType string, data interface{})
	SendCoinUpdate(coinID string, data interface{})
	NotifyAlert(userID uint, payload notify.AlertPayload)
}

// Scheduler runs the two periodic jobs: the price broadcast and the alert
// check. The jobs are independent; one failing or overrunning never delays
// the other. SingletonMode keeps a slow cycle from stacking on itself.
type Scheduler struct {
	cron     *gocron.Scheduler
	market   MarketData
	store    alerts.Store
	notifier Notifier
	history  *pricehistory.Store

	priceInterval time.Duration
	alertInterval time.Duration
}

// New creates a scheduler. history may be nil to disable local price caching.
func New(market MarketData, store alerts.Store, notifier Notifier, history *pricehistory.Store, priceInterval, alertInterval time.Duration) *Scheduler {
	if priceInterval <= 0 {
		priceInterval = DefaultPriceInterval
	}
	if alertInterval <= 0 {
		alertInterval = DefaultAlertInterval
	}
	return &Scheduler{
		cron:          gocron.NewScheduler(time.UTC),
		market:        market,
		store:         store,
		notifier:      notifier,
		history:       history,
		priceInterval: priceInterval,
		alertInterval: alertInterval,
	}
}

// Start registers the jobs and begins running them asynchronously
func (s *Scheduler) Start() error {
	_, err := s.cron.Every(int(s.priceInterval.Seconds())).Seconds().SingletonMode().Do(s.broadcastPrices)
	if err != nil {
		return err
	}

	_, err = s.cron.Every(int(s.alertInterval.Seconds())).Seconds().SingletonMode().Do(s.checkAlerts)
	if err != nil {
		return err
	}

	s.cron.StartAsync()
	log.Printf("Scheduler started: prices every %v, alerts every %v", s.priceInterval, s.alertInterval)
	return nil
}

// Stop halts the scheduler. Running jobs finish their current cycle.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
