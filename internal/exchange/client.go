// Package exchange implements the signed HTTP client for the Kalshi trade
// API: market data, portfolio queries and order management. All requests
// flow through a shared token bucket and a bounded retry loop.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

const (
	requestsPerSecond = 10
	maxAttempts       = 3
	maxRetryAfter     = 30 * time.Second

	// The API caps list endpoints at 200 rows per page.
	marketsPageLimit = 200
	eventsPageLimit  = 200
)

// Config holds exchange client configuration.
type Config struct {
	BaseURL string
	Signer  *Signer // nil for public, read-only access
	Client  *http.Client
	Logger  *zap.Logger
}

// Client is a rate-limited, retrying exchange API client. Safe for
// concurrent use.
type Client struct {
	baseURL string
	signer  *Signer
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Client from config, applying defaults for missing fields.
func New(cfg *Config) *Client {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		signer:  cfg.Signer,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do issues one API request with rate limiting, signing and retries, then
// decodes the JSON response into out (when out is non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		start := time.Now()
		data, err := c.doOnce(ctx, method, path, query, payload)
		RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", path, err)
			}
			return nil
		}

		lastErr = err
		var apiErr *types.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			RequestErrors.WithLabelValues(strconv.Itoa(apiErr.Status)).Inc()
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(1<<(attempt-1)) * time.Second
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
			if ra := retryAfter(apiErr); ra > 0 {
				delay = ra
			}
		}
		c.logger.Warn("exchange-request-retry",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	RequestErrors.WithLabelValues("exhausted").Inc()
	return fmt.Errorf("%s %s failed after %d attempts: %w", method, path, maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.signer != nil {
		// The signature covers the path without its query string.
		headers, err := c.signer.Headers(method, signedPath(req.URL))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &types.APIError{
			Status: resp.StatusCode,
			Path:   path,
		}
		var wire struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &wire) == nil {
			apiErr.Code = wire.Error.Code
			apiErr.Message = wire.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = string(data)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				apiErr.RetryAfter = secs
			}
			if apiErr.Message == "" {
				apiErr.Message = "rate limited"
			}
		}
		return nil, apiErr
	}

	return data, nil
}

// signedPath returns the request path as signed, stripping the query.
func signedPath(u *url.URL) string {
	return u.Path
}

// retryAfter converts the server-requested backoff to a capped duration.
func retryAfter(apiErr *types.APIError) time.Duration {
	if apiErr.RetryAfter <= 0 {
		return 0
	}
	d := time.Duration(apiErr.RetryAfter) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

// GetMarkets fetches one page of markets. Status and cursor may be empty.
func (c *Client) GetMarkets(ctx context.Context, status, cursor string) ([]Market, string, error) {
	q := url.Values{"limit": {strconv.Itoa(marketsPageLimit)}}
	if status != "" {
		q.Set("status", status)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp struct {
		Markets []Market `json:"markets"`
		Cursor  string   `json:"cursor"`
	}
	if err := c.do(ctx, http.MethodGet, "/markets", q, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Markets, resp.Cursor, nil
}

// GetAllMarkets walks the cursor until the exchange stops returning pages.
func (c *Client) GetAllMarkets(ctx context.Context, status string) ([]Market, error) {
	var all []Market
	cursor := ""
	for {
		page, next, err := c.GetMarkets(ctx, status, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" || len(page) == 0 {
			return all, nil
		}
		cursor = next
	}
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	var resp struct {
		Market Market `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Market, nil
}

// GetOrderbook fetches resting liquidity for a market down to depth levels.
func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (*Orderbook, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	var resp struct {
		Orderbook Orderbook `json:"orderbook"`
	}
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker+"/orderbook", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Orderbook, nil
}

// GetEvents fetches one page of events with nested markets.
func (c *Client) GetEvents(ctx context.Context, status, cursor string) ([]Event, string, error) {
	q := url.Values{
		"limit":               {strconv.Itoa(eventsPageLimit)},
		"with_nested_markets": {"true"},
	}
	if status != "" {
		q.Set("status", status)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp struct {
		Events []Event `json:"events"`
		Cursor string  `json:"cursor"`
	}
	if err := c.do(ctx, http.MethodGet, "/events", q, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Events, resp.Cursor, nil
}

// GetAllEvents walks the events cursor to the end.
func (c *Client) GetAllEvents(ctx context.Context, status string) ([]Event, error) {
	var all []Event
	cursor := ""
	for {
		page, next, err := c.GetEvents(ctx, status, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" || len(page) == 0 {
			return all, nil
		}
		cursor = next
	}
}

// GetEvent fetches a single event with its nested markets.
func (c *Client) GetEvent(ctx context.Context, eventTicker string) (*Event, error) {
	q := url.Values{"with_nested_markets": {"true"}}
	var resp struct {
		Event Event `json:"event"`
	}
	if err := c.do(ctx, http.MethodGet, "/events/"+eventTicker, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Event, nil
}

// GetBalance returns the account cash balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetPositions returns all open market positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp struct {
		MarketPositions []Position `json:"market_positions"`
	}
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MarketPositions, nil
}

// PlaceOrder submits a limit order and returns the exchange's view of it.
func (c *Client) PlaceOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &resp); err != nil {
		return nil, err
	}
	OrdersPlaced.WithLabelValues(req.Action, req.Side).Inc()
	c.logger.Info("order-placed",
		zap.String("ticker", req.Ticker),
		zap.String("side", req.Side),
		zap.String("action", req.Action),
		zap.Int("count", req.Count),
		zap.String("order_id", resp.Order.OrderID),
		zap.String("status", resp.Order.Status))
	return &resp.Order, nil
}

// GetOrder fetches the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders/"+orderID, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// CancelOrder cancels a resting order. Canceling an already-final order is
// not an error worth surfacing to callers.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, nil)
	var apiErr *types.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	if err == nil {
		OrdersCanceled.Inc()
	}
	return err
}

// GetFills returns recent execution reports, optionally scoped to a ticker.
func (c *Client) GetFills(ctx context.Context, ticker string) ([]Fill, error) {
	q := url.Values{"limit": {"200"}}
	if ticker != "" {
		q.Set("ticker", ticker)
	}
	var resp struct {
		Fills []Fill `json:"fills"`
	}
	if err := c.do(ctx, http.MethodGet, "/portfolio/fills", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Fills, nil
}
