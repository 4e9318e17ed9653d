package router

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// seqRand replays a fixed sequence of values, repeating the last one.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	if r.i >= len(r.vals) {
		return r.vals[len(r.vals)-1]
	}
	v := r.vals[r.i]
	r.i++
	return v
}

// instantClock never sleeps.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Unix(1700000000, 0).UTC() }

func (instantClock) Sleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func testPayload(side domain.OrderSide, tolerance float64) domain.OrderPayload {
	return domain.OrderPayload{
		OrderID:           "order-1",
		Pair:              "SOL/USDC",
		Side:              side,
		Amount:            10,
		SlippageTolerance: tolerance,
	}
}

func testQuote() domain.Quote {
	return domain.Quote{Venue: "raydium", Price: 100, Liquidity: 50000}
}

func TestExecuteSuccessBuy(t *testing.T) {
	// Draws: exec delay, slippage fraction, failure roll.
	r := &seqRand{vals: []float64{0.5, 0.4, 0.99}}
	sim := NewSimulatorWith(r, instantClock{}, testLogger())

	res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideBuy, 0.05), testQuote())
	require.NoError(t, err)
	require.True(t, res.Success)

	// Buy fills above the quote: 100 + 100*0.4*0.005 = 100.2.
	assert.Equal(t, 100.2, res.ExecutedPrice)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{64}$`), res.TxHash)
}

func TestExecuteSuccessSellFillsBelowQuote(t *testing.T) {
	r := &seqRand{vals: []float64{0.5, 0.4, 0.99}}
	sim := NewSimulatorWith(r, instantClock{}, testLogger())

	res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideSell, 0.05), testQuote())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 99.8, res.ExecutedPrice)
}

func TestExecuteSlippageExceeded(t *testing.T) {
	// Max slippage draw with a tolerance far tighter than 0.5%.
	r := &seqRand{vals: []float64{0.5, 0.9, 0.99}}
	sim := NewSimulatorWith(r, instantClock{}, testLogger())

	res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideBuy, 0.0001), testQuote())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrSlippageExceeded)
	assert.Empty(t, res.TxHash)
}

func TestExecuteSlippageCheckIsSymmetricForSell(t *testing.T) {
	// Sells deviate downwards but the same absolute relative change is
	// compared against the tolerance.
	r := &seqRand{vals: []float64{0.5, 0.9, 0.99}}
	sim := NewSimulatorWith(r, instantClock{}, testLogger())

	res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideSell, 0.0001), testQuote())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrSlippageExceeded)
}

func TestExecuteEventualSlippageFailureWithTightTolerance(t *testing.T) {
	// With a 1e-4 tolerance and slippage drawn up to 0.5%, repeated attempts
	// with real randomness must reject within a bounded number of trials.
	sim := NewSimulatorWith(SystemRand{}, instantClock{}, testLogger())

	rejected := false
	for i := 0; i < 50 && !rejected; i++ {
		res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideBuy, 0.0001), testQuote())
		require.NoError(t, err)
		if !res.Success && errors.Is(res.Err, domain.ErrSlippageExceeded) {
			rejected = true
		}
	}
	assert.True(t, rejected, "expected a slippage rejection within 50 trials")
}

func TestExecuteTransientFault(t *testing.T) {
	r := &seqRand{vals: []float64{0.5, 0.1, 0.01}}
	sim := NewSimulatorWith(r, instantClock{}, testLogger())

	res, err := sim.Execute(context.Background(), testPayload(domain.OrderSideBuy, 0.05), testQuote())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrExecutionFailed)
}

func TestNewTxHashShapeAndUniqueness(t *testing.T) {
	shape := regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	seen := make(map[string]bool, 100)

	for i := 0; i < 100; i++ {
		h, err := NewTxHash()
		require.NoError(t, err)
		assert.Len(t, h, 66)
		assert.Regexp(t, shape, h)
		assert.False(t, seen[h], "duplicate tx hash %s", h)
		seen[h] = true
	}
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 100.1235, RoundPrice(100.123456))
	assert.Equal(t, 99.0, RoundPrice(99.00004))
}
