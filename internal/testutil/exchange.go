// Package testutil provides shared fixtures and a mock exchange server
// for integration-level tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/quantfold/kalshi-arb/internal/exchange"
)

// MockExchange simulates the exchange REST API over httptest. All fields
// are safe to read after the test traffic has stopped; mutate them only
// through the setters while the server is live.
type MockExchange struct {
	*httptest.Server

	mu           sync.RWMutex
	markets      []exchange.Market
	events       []exchange.Event
	balanceCents int64
	positions    []exchange.Position

	// PlacedOrders collects every order placement the server saw.
	placedOrders []exchange.OrderRequest
	// orderSeq numbers synthetic order ids.
	orderSeq int
}

// NewMockExchange starts the mock server. Callers own Close via t.Cleanup
// on the embedded Server.
func NewMockExchange() *MockExchange {
	m := &MockExchange{balanceCents: 10000}
	m.Server = httptest.NewServer(http.HandlerFunc(m.route))
	return m
}

// SetMarkets replaces the market list served by /markets.
func (m *MockExchange) SetMarkets(markets []exchange.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// SetEvents replaces the event list served by /events.
func (m *MockExchange) SetEvents(events []exchange.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = events
}

// SetBalance sets the cash balance in cents.
func (m *MockExchange) SetBalance(cents int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceCents = cents
}

// SetPositions replaces the open positions.
func (m *MockExchange) SetPositions(positions []exchange.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// PlacedOrders returns a copy of every order placement seen so far.
func (m *MockExchange) PlacedOrders() []exchange.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]exchange.OrderRequest, len(m.placedOrders))
	copy(out, m.placedOrders)
	return out
}

func (m *MockExchange) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/markets":
		m.writeJSON(w, map[string]any{"markets": m.markets, "cursor": ""})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/markets/"):
		ticker := strings.TrimPrefix(r.URL.Path, "/markets/")
		for _, mk := range m.markets {
			if mk.Ticker == ticker {
				m.writeJSON(w, map[string]any{"market": mk})
				return
			}
		}
		m.writeError(w, http.StatusNotFound, "market_not_found", "no such market")

	case r.Method == http.MethodGet && r.URL.Path == "/events":
		m.writeJSON(w, map[string]any{"events": m.events, "cursor": ""})

	case r.Method == http.MethodGet && r.URL.Path == "/portfolio/balance":
		m.writeJSON(w, map[string]any{"balance": m.balanceCents})

	case r.Method == http.MethodGet && r.URL.Path == "/portfolio/positions":
		m.writeJSON(w, map[string]any{"market_positions": m.positions})

	case r.Method == http.MethodPost && r.URL.Path == "/portfolio/orders":
		var req exchange.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			m.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		m.placedOrders = append(m.placedOrders, req)
		m.orderSeq++
		// Orders fill immediately; fill-wait paths are tested with
		// scripted fakes, not here.
		m.writeJSON(w, map[string]any{"order": exchange.Order{
			OrderID:       fmt.Sprintf("mock-ord-%d", m.orderSeq),
			ClientOrderID: req.ClientOrderID,
			Ticker:        req.Ticker,
			Side:          req.Side,
			Action:        req.Action,
			Status:        "executed",
			YesPrice:      req.YesPrice,
			Count:         req.Count,
			FilledCount:   req.Count,
		}})

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/portfolio/orders/"):
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && r.URL.Path == "/portfolio/fills":
		m.writeJSON(w, map[string]any{"fills": []exchange.Fill{}})

	default:
		m.writeError(w, http.StatusNotFound, "not_found", "unhandled path "+r.URL.Path)
	}
}

func (m *MockExchange) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (m *MockExchange) writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
