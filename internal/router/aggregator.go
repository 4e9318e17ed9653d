// Package router aggregates quotes across venues, selects the best price for
// an order's side, and simulates execution against the chosen quote.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// QuoteSource is a single venue capable of quoting a trading pair.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, pair string) (domain.Quote, error)
}

// Aggregator fans a quote request out to every configured venue and joins
// the results.
type Aggregator struct {
	venues    []QuoteSource
	minQuotes int
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator over the given venues. minQuotes is
// the minimum number of venues that must answer; zero defaults to all
// configured venues.
func NewAggregator(venues []QuoteSource, minQuotes int, logger *slog.Logger) *Aggregator {
	if minQuotes <= 0 {
		minQuotes = len(venues)
	}
	return &Aggregator{
		venues:    venues,
		minQuotes: minQuotes,
		logger:    logger.With(slog.String("component", "router")),
	}
}

// FetchQuotes requests a quote for pair from every venue concurrently and
// waits for all of them. Routing needs the full venue set to pick a best
// price, so a single venue failure fails the whole aggregation with
// domain.ErrInsufficientQuotes.
func (a *Aggregator) FetchQuotes(ctx context.Context, pair string) ([]domain.Quote, error) {
	if len(a.venues) < a.minQuotes {
		return nil, fmt.Errorf("router: %d venue(s) configured, need %d: %w",
			len(a.venues), a.minQuotes, domain.ErrInsufficientQuotes)
	}

	quotes := make([]domain.Quote, len(a.venues))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range a.venues {
		g.Go(func() error {
			q, err := v.Quote(ctx, pair)
			if err != nil {
				return fmt.Errorf("router: quote from %s: %w", v.Name(), err)
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInsufficientQuotes)
	}

	attrs := make([]any, 0, len(quotes))
	for _, q := range quotes {
		attrs = append(attrs, slog.Float64(q.Venue, q.Price))
	}
	a.logger.DebugContext(ctx, "quotes fetched", attrs...)

	return quotes, nil
}

// SelectBest returns the most favorable quote for the side: the lowest price
// for buys, the highest for sells. Ties keep the first-seen quote. It
// returns domain.ErrInsufficientQuotes on an empty set.
func SelectBest(quotes []domain.Quote, side domain.OrderSide) (domain.Quote, error) {
	if len(quotes) == 0 {
		return domain.Quote{}, fmt.Errorf("router: select best: %w", domain.ErrInsufficientQuotes)
	}

	best := quotes[0]
	for _, q := range quotes[1:] {
		if side == domain.OrderSideBuy {
			if q.Price < best.Price {
				best = q
			}
		} else {
			if q.Price > best.Price {
				best = q
			}
		}
	}
	return best, nil
}
