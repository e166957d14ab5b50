package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) *Breaker {
	t.Helper()
	b, err := New(&Config{
		Name:             "test",
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		Logger:           zap.NewNop(),
	})
	require.NoError(t, err)
	return b
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker(t, 3, time.Minute)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b := newTestBreaker(t, 2, time.Minute)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures must not open")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := newTestBreaker(t, 1, time.Minute)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// Cooldown lapses: exactly one probe is admitted.
	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe while half-open")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := newTestBreaker(t, 1, time.Minute)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(2 * time.Minute)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	// A fresh cooldown applies from the reopen.
	now = now.Add(90 * time.Second)
	assert.True(t, b.Allow())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(&Config{FailureThreshold: 0, Cooldown: time.Minute})
	assert.Error(t, err)
	_, err = New(&Config{FailureThreshold: 3, Cooldown: 0})
	assert.Error(t, err)
}
