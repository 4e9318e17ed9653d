package domain

import (
	"context"
	"time"
)

// OrderCache is a short-lived, keyed-by-order-id lookup for orders that have
// not yet reached a terminal status. Entries are invalidated when the order
// finalizes; afterwards reads fall through to the store.
type OrderCache interface {
	Set(ctx context.Context, snap OrderSnapshot, ttl time.Duration) error
	Get(ctx context.Context, orderID string) (OrderSnapshot, error)
	Invalidate(ctx context.Context, orderID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
