// Package notify pushes engine alerts to a Discord-style webhook. Every
// send is best effort: failures are logged and swallowed, because a dead
// webhook must never stall a trading cycle.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantfold/kalshi-arb/pkg/types"
)

// Embed colors.
const (
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorBlue   = 0x3498DB
	colorYellow = 0xF1C40F
	colorOrange = 0xE67E22
)

const (
	footerText     = "Kalshi Arb Engine"
	defaultPerMin  = 10
	maxRetrySleep  = 3 * time.Second
	requestTimeout = 10 * time.Second
)

// Config holds notifier configuration.
type Config struct {
	// WebhookURL empty disables the notifier entirely.
	WebhookURL   string
	MaxPerMinute int
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Notifier sends webhook embeds, dropping routine alerts that exceed the
// per-minute budget. Startup, shutdown, and error alerts bypass the
// limiter.
type Notifier struct {
	url     string
	limiter *rate.Limiter
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Notifier. A nil config or empty webhook URL yields a
// functional no-op notifier.
func New(cfg *Config) *Notifier {
	if cfg == nil {
		cfg = &Config{}
	}
	perMin := cfg.MaxPerMinute
	if perMin <= 0 {
		perMin = defaultPerMin
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		url:     cfg.WebhookURL,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
		http:    client,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Startup announces the engine coming up.
func (n *Notifier) Startup(ctx context.Context, mode string) {
	n.send(ctx, true, embed{
		Title:       "Engine started",
		Description: fmt.Sprintf("Mode: %s", mode),
		Color:       colorGreen,
	})
}

// Shutdown announces the engine going down.
func (n *Notifier) Shutdown(ctx context.Context, reason string) {
	n.send(ctx, true, embed{
		Title:       "Engine stopped",
		Description: reason,
		Color:       colorOrange,
	})
}

// Error reports a failure worth human eyes.
func (n *Notifier) Error(ctx context.Context, title string, err error) {
	n.send(ctx, true, embed{
		Title:       title,
		Description: err.Error(),
		Color:       colorRed,
	})
}

// Opportunity reports a freshly detected violation.
func (n *Notifier) Opportunity(ctx context.Context, opp *types.Opportunity) {
	n.send(ctx, false, embed{
		Title: "Opportunity detected",
		Color: colorBlue,
		Fields: []embedField{
			{Name: "Signal", Value: opp.Signal, Inline: true},
			{Name: "Magnitude", Value: fmt.Sprintf("$%.2f", opp.Magnitude), Inline: true},
			{Name: "Score", Value: fmt.Sprintf("%.3f", opp.Score), Inline: true},
			{Name: "Legs", Value: legLines(opp.Legs)},
		},
	})
}

// Trade reports an executed opportunity. Dry runs render yellow.
func (n *Notifier) Trade(ctx context.Context, opp *types.Opportunity, dryRun bool) {
	color := colorGreen
	title := "Trade executed"
	if dryRun {
		color = colorYellow
		title = "Trade simulated"
	}
	n.send(ctx, false, embed{
		Title: title,
		Color: color,
		Fields: []embedField{
			{Name: "Signal", Value: opp.Signal, Inline: true},
			{Name: "Status", Value: opp.Status, Inline: true},
			{Name: "Magnitude", Value: fmt.Sprintf("$%.2f", opp.Magnitude), Inline: true},
			{Name: "Legs", Value: legLines(opp.Legs)},
		},
	})
}

// DailySummary reports the guard's end-of-day view, green when flat or up.
func (n *Notifier) DailySummary(ctx context.Context, s *types.PortfolioSummary, opportunities, trades int) {
	color := colorGreen
	if s.DailyPnL < 0 {
		color = colorRed
	}
	n.send(ctx, false, embed{
		Title: "Daily summary",
		Color: color,
		Fields: []embedField{
			{Name: "Balance", Value: fmt.Sprintf("$%.2f", s.Balance), Inline: true},
			{Name: "Daily P&L", Value: fmt.Sprintf("$%.2f", s.DailyPnL), Inline: true},
			{Name: "Open positions", Value: strconv.Itoa(s.OpenPositions), Inline: true},
			{Name: "Opportunities", Value: strconv.Itoa(opportunities), Inline: true},
			{Name: "Trades", Value: strconv.Itoa(trades), Inline: true},
			{Name: "Trading enabled", Value: strconv.FormatBool(s.CanTrade), Inline: true},
		},
	})
}

// ArbFound reports a YES+NO arbitrage picked up by the auxiliary loop.
func (n *Notifier) ArbFound(ctx context.Context, scan *types.ArbScan) {
	n.send(ctx, false, embed{
		Title: "YES+NO arbitrage",
		Color: colorGreen,
		Fields: []embedField{
			{Name: "Event", Value: scan.EventTicker, Inline: true},
			{Name: "Ask sum", Value: fmt.Sprintf("$%.2f", scan.TotalAsk), Inline: true},
			{Name: "Profit", Value: fmt.Sprintf("%.1f¢", scan.ProfitCents), Inline: true},
		},
	})
}

// ScanSummary reports auxiliary loop progress.
func (n *Notifier) ScanSummary(ctx context.Context, cycles, scanned, found int) {
	n.send(ctx, false, embed{
		Title: "Scan summary",
		Color: colorBlue,
		Fields: []embedField{
			{Name: "Cycles", Value: strconv.Itoa(cycles), Inline: true},
			{Name: "Markets scanned", Value: strconv.Itoa(scanned), Inline: true},
			{Name: "Arbs found", Value: strconv.Itoa(found), Inline: true},
		},
	})
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      embedFooter  `json:"footer"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) send(ctx context.Context, bypass bool, e embed) {
	if n.url == "" {
		return
	}
	if !bypass && !n.limiter.Allow() {
		Dropped.Inc()
		n.logger.Debug("notification-dropped", zap.String("title", e.Title))
		return
	}

	e.Footer = embedFooter{Text: footerText}
	e.Timestamp = n.now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
	if err != nil {
		n.logger.Warn("notification-encode-failed", zap.Error(err))
		return
	}

	if err := n.post(ctx, body); err != nil {
		Failed.Inc()
		n.logger.Warn("notification-failed", zap.String("title", e.Title), zap.Error(err))
		return
	}
	Sent.Inc()
}

// post delivers the payload, retrying once after a 429.
func (n *Notifier) post(ctx context.Context, body []byte) error {
	status, retryAfter, err := n.postOnce(ctx, body)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests {
		if retryAfter <= 0 || retryAfter > maxRetrySleep {
			retryAfter = maxRetrySleep
		}
		if err := n.sleep(ctx, retryAfter); err != nil {
			return err
		}
		status, _, err = n.postOnce(ctx, body)
		if err != nil {
			return err
		}
	}
	if status >= 300 {
		return fmt.Errorf("webhook returned status %d", status)
	}
	return nil
}

func (n *Notifier) postOnce(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	var retryAfter time.Duration
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			retryAfter = time.Duration(secs * float64(time.Second))
		}
	}
	return resp.StatusCode, retryAfter, nil
}

func legLines(legs []types.Leg) string {
	var b strings.Builder
	for i, l := range legs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s @ $%.2f", strings.ToUpper(l.Side), strings.ToUpper(l.ContractSide()), l.Ticker, l.Price)
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
