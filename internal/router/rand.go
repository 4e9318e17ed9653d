package router

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Rand is the randomness source behind every simulated outcome (price
// variance, slippage, transient faults). Tests inject fixed sequences to
// exercise each branch deterministically.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// Clock abstracts time reads and latency sleeps so tests run without real
// delays.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is cancelled, in which case it
	// returns the context error.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemRand is the production Rand backed by math/rand/v2.
type SystemRand struct{}

func (SystemRand) Float64() float64 { return rand.Float64() }

// SystemClock is the production Clock backed by real timers.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RoundPrice rounds a price to the fixed 4-decimal display precision used
// across quotes and executions.
func RoundPrice(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}
