// Package circuitbreaker guards flaky upstream dependencies with a
// classic closed/open/half-open breaker. The relationship oracle is its
// main consumer: a streak of failed inference calls opens the breaker and
// discovery passes skip work until the cooldown lapses.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position.
type State int

const (
	// StateClosed passes all calls through.
	StateClosed State = iota
	// StateOpen rejects all calls until the cooldown lapses.
	StateOpen
	// StateHalfOpen lets one probe call through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds breaker configuration.
type Config struct {
	// Name labels log lines and metrics.
	Name string
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	Logger   *zap.Logger
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent
// use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a Breaker in the closed state.
func New(cfg *Config) (*Breaker, error) {
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive, got %d", cfg.FailureThreshold)
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive, got %s", cfg.Cooldown)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		logger:    logger,
		now:       time.Now,
	}
	BreakerState.WithLabelValues(b.name).Set(float64(StateClosed))
	return b, nil
}

// Allow reports whether a call may proceed. In the open state it returns
// false until the cooldown lapses, then admits a single probe and moves to
// half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.probing {
			CallsRejected.WithLabelValues(b.name).Inc()
			return false
		}
		b.probing = true
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			CallsRejected.WithLabelValues(b.name).Inc()
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure streak and closes a half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure notes one failed call. A half-open probe failure reopens
// immediately; in the closed state the breaker opens once the streak
// reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false

	switch b.state {
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateOpen:
	}
}

// State returns the current position without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves to next and updates observability. Caller holds mu.
func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	BreakerState.WithLabelValues(b.name).Set(float64(next))
	StateChanges.WithLabelValues(b.name).Inc()

	log := b.logger.Info
	if next == StateOpen {
		log = b.logger.Warn
	}
	log("breaker-state-change",
		zap.String("breaker", b.name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.Int("failures", b.failures))
}
