package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/pkg/healthprobe"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

type fakeLister struct {
	opps      []types.Opportunity
	err       error
	lastLimit int
}

func (f *fakeLister) ListRecentOpportunities(_ context.Context, limit int) ([]types.Opportunity, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.opps) {
		limit = len(f.opps)
	}
	return f.opps[:limit], nil
}

type fakePortfolio struct {
	summary types.PortfolioSummary
}

func (f *fakePortfolio) Summary() types.PortfolioSummary { return f.summary }

func newTestServer(t *testing.T, lister OpportunityLister, portfolio PortfolioSource) *httptest.Server {
	t.Helper()
	hc := healthprobe.New()
	hc.SetReady(true)
	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
		Opportunities: lister,
		Portfolio:     portfolio,
	})
	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthAndReadyRoutes(t *testing.T) {
	ts := newTestServer(t, &fakeLister{}, &fakePortfolio{})

	resp, _ := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t, &fakeLister{}, &fakePortfolio{})

	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestOpportunitiesEndpoint(t *testing.T) {
	lister := &fakeLister{opps: []types.Opportunity{
		{ID: "opp-1", Signal: types.SignalBuySupersetSellSubset, Score: 0.12},
		{ID: "opp-2", Signal: types.SignalBuyAllPartition, Score: 0.08},
	}}
	ts := newTestServer(t, lister, &fakePortfolio{})

	resp, body := get(t, ts.URL+"/api/opportunities")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, lister.lastLimit, "default limit")

	var out struct {
		Opportunities []types.Opportunity `json:"opportunities"`
		Count         int                 `json:"count"`
		AsOf          time.Time           `json:"as_of"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "opp-1", out.Opportunities[0].ID)
	assert.False(t, out.AsOf.IsZero())
}

func TestOpportunitiesLimitHandling(t *testing.T) {
	lister := &fakeLister{opps: []types.Opportunity{{ID: "opp-1"}}}
	ts := newTestServer(t, lister, &fakePortfolio{})

	resp, _ := get(t, ts.URL+"/api/opportunities?limit=3")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, lister.lastLimit)

	resp, _ = get(t, ts.URL+"/api/opportunities?limit=9999")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500, lister.lastLimit, "limit is clamped")

	resp, _ = get(t, ts.URL+"/api/opportunities?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/api/opportunities?limit=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpportunitiesStorageFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	ts := newTestServer(t, lister, &fakePortfolio{})

	resp, body := get(t, ts.URL+"/api/opportunities")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "storage unavailable")
	assert.NotContains(t, string(body), "connection refused", "internal detail stays out of the response")
}

func TestPortfolioEndpoint(t *testing.T) {
	portfolio := &fakePortfolio{summary: types.PortfolioSummary{
		Balance:       250.75,
		DailyPnL:      -4.20,
		OpenPositions: 3,
		CanTrade:      true,
	}}
	ts := newTestServer(t, &fakeLister{}, portfolio)

	resp, body := get(t, ts.URL+"/api/portfolio")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.PortfolioSummary
	require.NoError(t, json.Unmarshal(body, &out))
	assert.InDelta(t, 250.75, out.Balance, 1e-9)
	assert.InDelta(t, -4.20, out.DailyPnL, 1e-9)
	assert.Equal(t, 3, out.OpenPositions)
	assert.True(t, out.CanTrade)
}

func TestAPIRoutesAbsentWithoutBackends(t *testing.T) {
	hc := healthprobe.New()
	s := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})
	ts := httptest.NewServer(s.server.Handler)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/api/opportunities")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, ts.URL+"/api/portfolio")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGracefulShutdown(t *testing.T) {
	hc := healthprobe.New()
	s := New(&Config{Port: "0", Logger: zap.NewNop(), HealthChecker: hc})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
