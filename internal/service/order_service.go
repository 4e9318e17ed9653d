// Package service contains the order lifecycle use cases exposed over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// maxSlippageTolerance is the largest tolerance accepted on submission.
const maxSlippageTolerance = 0.5

// defaultSlippageTolerance applies when the request leaves tolerance unset.
const defaultSlippageTolerance = 0.01

// orderCacheTTL bounds how long an in-flight order stays in the lookup cache.
const orderCacheTTL = time.Hour

// SubmitRequest carries the caller-supplied fields of a new order.
type SubmitRequest struct {
	Pair              string
	Side              domain.OrderSide
	Amount            float64
	SlippageTolerance float64
}

// OrderService accepts orders, hands them to the execution queue, and answers
// status queries cache-first.
type OrderService struct {
	store  domain.OrderStore
	cache  domain.OrderCache
	queue  domain.JobQueue
	logger *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	store domain.OrderStore,
	cache domain.OrderCache,
	queue domain.JobQueue,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		store:  store,
		cache:  cache,
		queue:  queue,
		logger: logger.With(slog.String("component", "order_service")),
	}
}

// Submit validates the request, persists a pending order, seeds the lookup
// cache, and enqueues the execution job. The order is returned immediately;
// execution happens asynchronously.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (domain.Order, error) {
	if err := validate(&req); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                uuid.NewString(),
		Pair:              req.Pair,
		Side:              req.Side,
		Amount:            req.Amount,
		SlippageTolerance: req.SlippageTolerance,
		Status:            domain.OrderStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: create order: %w", err)
	}

	// A cache miss only costs a store read, so seeding failures are logged
	// rather than surfaced.
	if err := s.cache.Set(ctx, order.Snapshot(), orderCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "seed order cache failed",
			slog.String("order_id", order.ID), slog.Any("error", err))
	}

	if err := s.queue.Enqueue(ctx, domain.OrderPayload{
		OrderID:           order.ID,
		Pair:              order.Pair,
		Side:              order.Side,
		Amount:            order.Amount,
		SlippageTolerance: order.SlippageTolerance,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: enqueue order %s: %w", order.ID, err)
	}

	s.logger.InfoContext(ctx, "order accepted",
		slog.String("order_id", order.ID),
		slog.String("pair", order.Pair),
		slog.String("side", string(order.Side)),
		slog.Float64("amount", order.Amount))

	return order, nil
}

// GetStatus returns the current view of an order. In-flight orders are served
// from the fast-lookup cache when possible; terminal orders and cache misses
// fall through to the store, which includes the transition history.
func (s *OrderService) GetStatus(ctx context.Context, orderID string) (domain.OrderWithTransitions, error) {
	if snap, err := s.cache.Get(ctx, orderID); err == nil {
		return domain.OrderWithTransitions{Order: domain.Order{
			ID:     snap.ID,
			Pair:   snap.Pair,
			Side:   snap.Side,
			Amount: snap.Amount,
			Status: snap.Status,
		}}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "order cache read failed",
			slog.String("order_id", orderID), slog.Any("error", err))
	}

	rec, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.OrderWithTransitions{}, domain.ErrNotFound
		}
		return domain.OrderWithTransitions{}, fmt.Errorf("order_service: get order %s: %w", orderID, err)
	}
	return rec, nil
}

// ListRecent returns the most recently created orders, newest first.
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("order_service: list recent orders: %w", err)
	}
	return orders, nil
}

func validate(req *SubmitRequest) error {
	req.Pair = strings.TrimSpace(req.Pair)
	if len(req.Pair) < 3 || !strings.Contains(req.Pair, "/") {
		return fmt.Errorf("%w: pair %q must be of the form BASE/QUOTE", domain.ErrInvalidOrder, req.Pair)
	}
	if !req.Side.Valid() {
		return fmt.Errorf("%w: side must be buy or sell", domain.ErrInvalidOrder)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidOrder)
	}
	if req.SlippageTolerance == 0 {
		req.SlippageTolerance = defaultSlippageTolerance
	}
	if req.SlippageTolerance < 0 || req.SlippageTolerance > maxSlippageTolerance {
		return fmt.Errorf("%w: slippage tolerance must be in (0, %g]", domain.ErrInvalidOrder, maxSlippageTolerance)
	}
	return nil
}
