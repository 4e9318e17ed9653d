package service

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

type fakeStore struct {
	created []domain.Order
	byID    map[string]domain.OrderWithTransitions
	recent  []domain.Order
}

func (s *fakeStore) Create(ctx context.Context, o domain.Order) error {
	s.created = append(s.created, o)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (domain.OrderWithTransitions, error) {
	rec, ok := s.byID[id]
	if !ok {
		return domain.OrderWithTransitions{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.recent, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, u domain.OrderUpdate) error {
	return nil
}

func (s *fakeStore) AppendTransition(ctx context.Context, t domain.StatusTransition) error {
	return nil
}

func (s *fakeStore) ListTransitions(ctx context.Context, orderID string) ([]domain.StatusTransition, error) {
	return nil, nil
}

func (s *fakeStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	return nil, nil
}

type fakeCache struct {
	snaps  map[string]domain.OrderSnapshot
	setErr error
}

func (c *fakeCache) Set(ctx context.Context, snap domain.OrderSnapshot, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	if c.snaps == nil {
		c.snaps = make(map[string]domain.OrderSnapshot)
	}
	c.snaps[snap.ID] = snap
	return nil
}

func (c *fakeCache) Get(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	snap, ok := c.snaps[orderID]
	if !ok {
		return domain.OrderSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, orderID string) error {
	delete(c.snaps, orderID)
	return nil
}

type fakeQueue struct {
	enqueued []domain.OrderPayload
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, p domain.OrderPayload) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, p)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (*domain.Job, error) { return nil, nil }
func (q *fakeQueue) Ack(ctx context.Context, j *domain.Job) error     { return nil }
func (q *fakeQueue) Retry(ctx context.Context, j *domain.Job) error   { return nil }

func newService(store *fakeStore, cache *fakeCache, queue *fakeQueue) *OrderService {
	return NewOrderService(store, cache, queue, testLogger())
}

func TestSubmitAcceptsValidOrder(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{}
	queue := &fakeQueue{}
	svc := newService(store, cache, queue)

	order, err := svc.Submit(context.Background(), SubmitRequest{
		Pair:              "SOL/USDC",
		Side:              domain.OrderSideBuy,
		Amount:            10,
		SlippageTolerance: 0.02,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 0.02, order.SlippageTolerance)

	require.Len(t, store.created, 1)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, order.ID, queue.enqueued[0].OrderID)
	assert.Contains(t, cache.snaps, order.ID)
}

func TestSubmitDefaultsSlippageTolerance(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeCache{}, &fakeQueue{})

	order, err := svc.Submit(context.Background(), SubmitRequest{
		Pair:   "SOL/USDC",
		Side:   domain.OrderSideSell,
		Amount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.01, order.SlippageTolerance)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeCache{}, &fakeQueue{})

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing pair", SubmitRequest{Side: domain.OrderSideBuy, Amount: 1}},
		{"pair without separator", SubmitRequest{Pair: "SOLUSDC", Side: domain.OrderSideBuy, Amount: 1}},
		{"bad side", SubmitRequest{Pair: "SOL/USDC", Side: "hold", Amount: 1}},
		{"zero amount", SubmitRequest{Pair: "SOL/USDC", Side: domain.OrderSideBuy}},
		{"negative amount", SubmitRequest{Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: -5}},
		{"tolerance too high", SubmitRequest{Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: 1, SlippageTolerance: 0.6}},
		{"negative tolerance", SubmitRequest{Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: 1, SlippageTolerance: -0.1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.req)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}
}

func TestSubmitSurvivesCacheFailure(t *testing.T) {
	store := &fakeStore{}
	queue := &fakeQueue{}
	svc := newService(store, &fakeCache{setErr: errors.New("redis down")}, queue)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: 2,
	})
	require.NoError(t, err)
	assert.Len(t, queue.enqueued, 1)
}

func TestSubmitFailsWhenEnqueueFails(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue unavailable")}
	svc := newService(&fakeStore{}, &fakeCache{}, queue)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: 2,
	})
	assert.Error(t, err)
}

func TestGetStatusPrefersCache(t *testing.T) {
	cache := &fakeCache{snaps: map[string]domain.OrderSnapshot{
		"abc": {ID: "abc", Pair: "SOL/USDC", Side: domain.OrderSideBuy, Amount: 3, Status: domain.OrderStatusRouting},
	}}
	svc := newService(&fakeStore{}, cache, &fakeQueue{})

	rec, err := svc.GetStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRouting, rec.Status)
	assert.Empty(t, rec.Transitions)
}

func TestGetStatusFallsThroughToStore(t *testing.T) {
	store := &fakeStore{byID: map[string]domain.OrderWithTransitions{
		"abc": {
			Order: domain.Order{ID: "abc", Status: domain.OrderStatusConfirmed, TxHash: "0xdeadbeef"},
			Transitions: []domain.StatusTransition{
				{OrderID: "abc", FromState: domain.OrderStatusPending, ToState: domain.OrderStatusRouting},
			},
		},
	}}
	svc := newService(store, &fakeCache{}, &fakeQueue{})

	rec, err := svc.GetStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, rec.Status)
	assert.Len(t, rec.Transitions, 1)
}

func TestGetStatusUnknownOrder(t *testing.T) {
	svc := newService(&fakeStore{}, &fakeCache{}, &fakeQueue{})

	_, err := svc.GetStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
