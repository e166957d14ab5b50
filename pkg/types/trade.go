package types

import "time"

// Order statuses the executor distinguishes. The exchange reports more, but
// only these terminate a fill-wait.
const (
	OrderStatusPending  = "pending"
	OrderStatusResting  = "resting"
	OrderStatusFilled   = "filled"
	OrderStatusCanceled = "canceled"
	OrderStatusExpired  = "expired"
	OrderStatusDryRun   = "dry_run"
)

// Trade is one persisted order attempt belonging to an opportunity. Rows
// are append-only; only OrderStatus and FilledCount mutate after insert.
type Trade struct {
	ID            string    `json:"id"`
	OpportunityID string    `json:"opportunity_id"`
	Ticker        string    `json:"ticker"`
	Side          string    `json:"side"`
	Action        string    `json:"action"`
	Price         float64   `json:"price"`
	Count         int       `json:"count"`
	OrderID       string    `json:"order_id"`
	OrderStatus   string    `json:"order_status"`
	FilledCount   int       `json:"filled_count"`
	Fees          float64   `json:"fees"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
