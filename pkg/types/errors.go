package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrMarketNotFound is returned by lookups for tickers the store has
	// never seen. Detector passes treat it as a missing constraint member.
	ErrMarketNotFound = errors.New("market not found")

	// ErrOpportunityNotFound is returned when a status transition targets
	// an opportunity id that was never persisted.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrSnapshotUnavailable is returned by the market cache before its
	// first refresh completes.
	ErrSnapshotUnavailable = errors.New("market snapshot not loaded yet")
)

// APIError is a non-2xx response from the exchange. Status 429 and 5xx are
// retried by the client; everything else fails fast.
type APIError struct {
	Status  int
	Code    string
	Message string
	Path    string

	// RetryAfter is the server-requested backoff in seconds, if any.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange %s: status %d: %s (%s)", e.Path, e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("exchange %s: status %d: %s", e.Path, e.Status, e.Message)
}

// Retryable reports whether the request may be retried.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
