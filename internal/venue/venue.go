// Package venue provides simulated price sources for trading pairs. Each
// venue answers quote requests with a modeled response latency and a price
// perturbed around a venue-specific baseline, standing in for a real DEX
// liquidity source.
package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/routerlabs/dexrouter/internal/domain"
	"github.com/routerlabs/dexrouter/internal/router"
)

const (
	// Quote latency bounds.
	minLatency = 200 * time.Millisecond
	maxLatency = 300 * time.Millisecond

	// Price variance bounds around the baseline, applied in a random
	// direction.
	minVariance = 0.02
	maxVariance = 0.05
)

// Simulated is a single simulated venue. The zero value is not usable;
// construct with New or one of the named constructors.
type Simulated struct {
	name      string
	baselines map[string]float64
	fallback  float64
	liqBase   float64
	liqSpread float64
	rand      router.Rand
	clock     router.Clock
}

// Option customises a Simulated venue.
type Option func(*Simulated)

// WithRand injects a deterministic random source, for tests.
func WithRand(r router.Rand) Option {
	return func(v *Simulated) { v.rand = r }
}

// WithClock injects a clock, so tests can skip the modeled latency.
func WithClock(c router.Clock) Option {
	return func(v *Simulated) { v.clock = c }
}

// New creates a simulated venue with the given name, per-pair price
// baselines, and a fallback baseline for unrecognized pairs. liqBase and
// liqSpread bound the reported liquidity: liqBase + [0, liqSpread).
func New(name string, baselines map[string]float64, fallback, liqBase, liqSpread float64, opts ...Option) *Simulated {
	v := &Simulated{
		name:      name,
		baselines: baselines,
		fallback:  fallback,
		liqBase:   liqBase,
		liqSpread: liqSpread,
		rand:      router.SystemRand{},
		clock:     router.SystemClock{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewRaydium creates the simulated Raydium venue.
func NewRaydium(opts ...Option) *Simulated {
	return New("raydium", map[string]float64{
		"SOL/USDC": 98.5,
		"SOL/USDT": 98.4,
		"ETH/USDC": 3450.0,
		"BTC/USDC": 42500.0,
	}, 100, 50000, 100000, opts...)
}

// NewMeteora creates the simulated Meteora venue.
func NewMeteora(opts ...Option) *Simulated {
	return New("meteora", map[string]float64{
		"SOL/USDC": 98.6,
		"SOL/USDT": 98.5,
		"ETH/USDC": 3452.0,
		"BTC/USDC": 42520.0,
	}, 100.5, 40000, 80000, opts...)
}

// Name returns the venue identifier carried in quotes.
func (v *Simulated) Name() string {
	return v.name
}

// Quote returns a fresh quote for the pair after the modeled response
// latency. The price is the pair baseline perturbed by 2-5% in a random
// direction, rounded to 4 decimal places.
func (v *Simulated) Quote(ctx context.Context, pair string) (domain.Quote, error) {
	latency := minLatency + time.Duration(v.rand.Float64()*float64(maxLatency-minLatency))
	if err := v.clock.Sleep(ctx, latency); err != nil {
		return domain.Quote{}, fmt.Errorf("venue %s: quote %s: %w", v.name, pair, err)
	}

	base, ok := v.baselines[pair]
	if !ok {
		base = v.fallback
	}

	variance := minVariance + v.rand.Float64()*(maxVariance-minVariance)
	if v.rand.Float64() > 0.5 {
		variance = -variance
	}

	return domain.Quote{
		Venue:     v.name,
		Price:     router.RoundPrice(base * (1 + variance)),
		Liquidity: v.liqBase + v.rand.Float64()*v.liqSpread,
		Timestamp: v.clock.Now(),
	}, nil
}
