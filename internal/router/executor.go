package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/routerlabs/dexrouter/internal/domain"
)

const (
	// Submission latency bounds.
	minExecDelay = 2 * time.Second
	maxExecDelay = 3 * time.Second

	// maxSlippage bounds the random slippage applied to the quoted price.
	maxSlippage = 0.005

	// failureRate is the probability of a transient execution fault on an
	// otherwise acceptable fill.
	failureRate = 0.05
)

// Simulator models order submission against a selected quote: submission
// latency, bounded random slippage checked against the order's tolerance,
// and a small transient fault probability.
type Simulator struct {
	rand   Rand
	clock  Clock
	logger *slog.Logger
}

// NewSimulator creates a Simulator with production randomness and timers.
func NewSimulator(logger *slog.Logger) *Simulator {
	return &Simulator{
		rand:   SystemRand{},
		clock:  SystemClock{},
		logger: logger.With(slog.String("component", "executor")),
	}
}

// NewSimulatorWith creates a Simulator with injected randomness and clock,
// for deterministic tests.
func NewSimulatorWith(r Rand, c Clock, logger *slog.Logger) *Simulator {
	return &Simulator{
		rand:   r,
		clock:  c,
		logger: logger.With(slog.String("component", "executor")),
	}
}

// Execute simulates submitting the order at the quoted price. Slippage of up
// to 0.5% of the quote is applied against the order (buys fill higher, sells
// lower). The relative price change is compared symmetrically against the
// order's tolerance for both sides; a breach fails the attempt with
// domain.ErrSlippageExceeded. Independently, a 5% transient fault is modeled
// even when slippage is acceptable.
func (s *Simulator) Execute(ctx context.Context, payload domain.OrderPayload, quote domain.Quote) (domain.ExecutionResult, error) {
	s.logger.InfoContext(ctx, "executing order",
		slog.String("order_id", payload.OrderID),
		slog.String("venue", quote.Venue),
		slog.Float64("quote_price", quote.Price),
	)

	delay := minExecDelay + time.Duration(s.rand.Float64()*float64(maxExecDelay-minExecDelay))
	if err := s.clock.Sleep(ctx, delay); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("router: execute %s: %w", payload.OrderID, err)
	}

	slippage := quote.Price * s.rand.Float64() * maxSlippage
	finalPrice := quote.Price + slippage
	if payload.Side == domain.OrderSideSell {
		finalPrice = quote.Price - slippage
	}

	priceChange := math.Abs(finalPrice-quote.Price) / quote.Price
	if priceChange > payload.SlippageTolerance {
		s.logger.InfoContext(ctx, "slippage exceeded",
			slog.String("order_id", payload.OrderID),
			slog.Float64("price_change_pct", priceChange*100),
			slog.Float64("tolerance_pct", payload.SlippageTolerance*100),
		)
		return domain.ExecutionResult{
			Success: false,
			Err:     fmt.Errorf("slippage %.2f%% over tolerance %.2f%%: %w", priceChange*100, payload.SlippageTolerance*100, domain.ErrSlippageExceeded),
		}, nil
	}

	if s.rand.Float64() < failureRate {
		s.logger.InfoContext(ctx, "transient execution fault",
			slog.String("order_id", payload.OrderID),
		)
		return domain.ExecutionResult{
			Success: false,
			Err:     fmt.Errorf("transaction simulation failed: %w", domain.ErrExecutionFailed),
		}, nil
	}

	txHash, err := NewTxHash()
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	s.logger.InfoContext(ctx, "order executed",
		slog.String("order_id", payload.OrderID),
		slog.String("tx_hash", txHash),
	)

	return domain.ExecutionResult{
		Success:       true,
		TxHash:        txHash,
		ExecutedPrice: RoundPrice(finalPrice),
	}, nil
}
