package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Kubojah-Dan/CoinVista/models"
	"github.com/Kubojah-Dan/CoinVista/services/alerts"
)

// fakeAlertStore is a minimal in-memory store for controller tests
type fakeAlertStore struct {
	alerts map[uint]models.Alert
	nextID uint
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[uint]models.Alert), nextID: 1}
}

func (s *fakeAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	alert.ID = s.nextID
	s.nextID++
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *fakeAlertStore) ListByUser(ctx context.Context, userID uint) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAlertStore) Delete(ctx context.Context, id, userID uint) error {
	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return alerts.ErrAlertNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *fakeAlertStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	return nil, nil
}

func (s *fakeAlertStore) MarkTriggered(ctx context.Context, id uint, observedPrice decimal.Decimal, at time.Time) (*models.Alert, error) {
	return nil, alerts.ErrAlertNotFound
}

func (s *fakeAlertStore) RecordObservedPrice(ctx context.Context, id uint, price decimal.Decimal) {}

func setupAlertRouter(store alerts.Store, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Stand-in for the auth middleware
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	ac := NewAlertController(store)
	router.GET("/alerts", ac.GetAlerts)
	router.POST("/alerts", ac.CreateAlert)
	router.DELETE("/alerts/:id", ac.DeleteAlert)
	return router
}

func TestCreateAlertValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"symbol":"bitcoin","targetPrice":"50000","direction":"above"}`, http.StatusCreated},
		{"missing symbol", `{"targetPrice":"50000","direction":"above"}`, http.StatusBadRequest},
		{"bad direction", `{"symbol":"bitcoin","targetPrice":"50000","direction":"sideways"}`, http.StatusBadRequest},
		{"zero price", `{"symbol":"bitcoin","targetPrice":"0","direction":"above"}`, http.StatusBadRequest},
		{"negative price", `{"symbol":"bitcoin","targetPrice":"-5","direction":"below"}`, http.StatusBadRequest},
		{"not json", `not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupAlertRouter(newFakeAlertStore(), 1)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/alerts", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateAlertNormalizesSymbol(t *testing.T) {
	store := newFakeAlertStore()
	router := setupAlertRouter(store, 1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/alerts",
		bytes.NewBufferString(`{"symbol":"  Bitcoin ","targetPrice":"50000","direction":"above"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if store.alerts[1].Symbol != "bitcoin" {
		t.Errorf("expected normalized symbol, got %q", store.alerts[1].Symbol)
	}
}

func TestGetAlertsReturnsOnlyOwn(t *testing.T) {
	store := newFakeAlertStore()
	store.Create(context.Background(), &models.Alert{UserID: 1, Symbol: "bitcoin"})
	store.Create(context.Background(), &models.Alert{UserID: 2, Symbol: "ethereum"})

	router := setupAlertRouter(store, 1)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data []models.Alert `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Symbol != "bitcoin" {
		t.Errorf("expected only user 1 alerts, got %+v", resp.Data)
	}
}

func TestDeleteAlertOfOtherUserIsNotFound(t *testing.T) {
	store := newFakeAlertStore()
	store.Create(context.Background(), &models.Alert{UserID: 2, Symbol: "bitcoin"})

	router := setupAlertRouter(store, 1)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/alerts/1", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign alert, got %d", w.Code)
	}
	if _, stillThere := store.alerts[1]; !stillThere {
		t.Error("foreign alert must not be deleted")
	}
}
