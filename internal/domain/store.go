package domain

import (
	"context"
	"time"
)

// OrderStore persists orders and their append-only transition history.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (OrderWithTransitions, error)
	ListRecent(ctx context.Context, limit int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status OrderStatus, update OrderUpdate) error
	AppendTransition(ctx context.Context, t StatusTransition) error
	ListTransitions(ctx context.Context, orderID string) ([]StatusTransition, error)

	// ListTerminalBefore returns terminal orders created strictly before the
	// cutoff, for archival.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]Order, error)
}
