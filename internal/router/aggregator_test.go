package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerlabs/dexrouter/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubVenue answers with a fixed quote or error.
type stubVenue struct {
	name  string
	price float64
	err   error
}

func (v stubVenue) Name() string { return v.name }

func (v stubVenue) Quote(ctx context.Context, pair string) (domain.Quote, error) {
	if v.err != nil {
		return domain.Quote{}, v.err
	}
	return domain.Quote{
		Venue:     v.name,
		Price:     v.price,
		Liquidity: 50000,
		Timestamp: time.Now(),
	}, nil
}

func TestFetchQuotesAllVenues(t *testing.T) {
	agg := NewAggregator([]QuoteSource{
		stubVenue{name: "raydium", price: 100},
		stubVenue{name: "meteora", price: 99},
	}, 0, testLogger())

	quotes, err := agg.FetchQuotes(context.Background(), "SOL/USDC")
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "raydium", quotes[0].Venue)
	assert.Equal(t, "meteora", quotes[1].Venue)
}

func TestFetchQuotesFailsWhenAnyVenueFails(t *testing.T) {
	agg := NewAggregator([]QuoteSource{
		stubVenue{name: "raydium", price: 100},
		stubVenue{name: "meteora", err: errors.New("pool drained")},
	}, 0, testLogger())

	_, err := agg.FetchQuotes(context.Background(), "SOL/USDC")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
}

func TestFetchQuotesRequiresMinimumVenues(t *testing.T) {
	agg := NewAggregator([]QuoteSource{
		stubVenue{name: "raydium", price: 100},
	}, 2, testLogger())

	_, err := agg.FetchQuotes(context.Background(), "SOL/USDC")
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
}

func TestSelectBest(t *testing.T) {
	quotes := []domain.Quote{
		{Venue: "raydium", Price: 100},
		{Venue: "meteora", Price: 99},
	}

	best, err := SelectBest(quotes, domain.OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, "meteora", best.Venue)
	assert.Equal(t, 99.0, best.Price)

	best, err = SelectBest(quotes, domain.OrderSideSell)
	require.NoError(t, err)
	assert.Equal(t, "raydium", best.Venue)
	assert.Equal(t, 100.0, best.Price)
}

func TestSelectBestStableTies(t *testing.T) {
	quotes := []domain.Quote{
		{Venue: "raydium", Price: 100},
		{Venue: "meteora", Price: 100},
	}

	best, err := SelectBest(quotes, domain.OrderSideBuy)
	require.NoError(t, err)
	assert.Equal(t, "raydium", best.Venue)

	best, err = SelectBest(quotes, domain.OrderSideSell)
	require.NoError(t, err)
	assert.Equal(t, "raydium", best.Venue)
}

func TestSelectBestEmpty(t *testing.T) {
	_, err := SelectBest(nil, domain.OrderSideBuy)
	assert.ErrorIs(t, err, domain.ErrInsufficientQuotes)
}
