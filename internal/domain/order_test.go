package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusRouting},
		{OrderStatusRouting, OrderStatusBuilding},
		{OrderStatusBuilding, OrderStatusSubmitted},
		{OrderStatusSubmitted, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusFailed},
		{OrderStatusRouting, OrderStatusFailed},
		{OrderStatusBuilding, OrderStatusFailed},
		{OrderStatusSubmitted, OrderStatusFailed},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusBuilding},
		{OrderStatusPending, OrderStatusSubmitted},
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusRouting, OrderStatusSubmitted},
		{OrderStatusBuilding, OrderStatusConfirmed},
		{OrderStatusRouting, OrderStatusPending},
		{OrderStatusConfirmed, OrderStatusFailed},
		{OrderStatusConfirmed, OrderStatusRouting},
		{OrderStatusFailed, OrderStatusFailed},
		{OrderStatusFailed, OrderStatusRouting},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusConfirmed.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusRouting.Terminal())
	assert.False(t, OrderStatusBuilding.Terminal())
	assert.False(t, OrderStatusSubmitted.Terminal())
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BackoffBase: time.Second}
	assert.Equal(t, 1*time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	// Out-of-range attempts clamp to the base delay.
	assert.Equal(t, 1*time.Second, p.Backoff(0))
}

func TestJobLastAttempt(t *testing.T) {
	j := &Job{Attempt: 2, Policy: RetryPolicy{MaxAttempts: 3}}
	assert.False(t, j.LastAttempt())
	j.Attempt = 3
	assert.True(t, j.LastAttempt())
}
