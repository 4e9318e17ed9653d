package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// DefaultOrderTTL matches the lifetime of a cached in-flight order.
const DefaultOrderTTL = time.Hour

// OrderCache implements domain.OrderCache using Redis string values with
// JSON-serialized order snapshots.
//
// Key schema:
//
//	order:{id} - JSON snapshot of an in-flight order
type OrderCache struct {
	rdb *redis.Client
}

// NewOrderCache creates an OrderCache backed by the given Client.
func NewOrderCache(c *Client) *OrderCache {
	return &OrderCache{rdb: c.Underlying()}
}

func orderKey(id string) string { return "order:" + id }

// Set stores an order snapshot with the given TTL. A zero TTL falls back to
// DefaultOrderTTL.
func (oc *OrderCache) Set(ctx context.Context, snap domain.OrderSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal order %s: %w", snap.ID, err)
	}

	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}

	if err := oc.rdb.Set(ctx, orderKey(snap.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set order %s: %w", snap.ID, err)
	}
	return nil
}

// Get retrieves an order snapshot by ID.
// It returns domain.ErrNotFound when the key does not exist.
func (oc *OrderCache) Get(ctx context.Context, orderID string) (domain.OrderSnapshot, error) {
	data, err := oc.rdb.Get(ctx, orderKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderSnapshot{}, fmt.Errorf("redis: get order %s: %w", orderID, err)
	}

	var snap domain.OrderSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("redis: unmarshal order %s: %w", orderID, err)
	}
	return snap, nil
}

// Invalidate removes an order snapshot from the cache. Missing keys are not
// an error.
func (oc *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	if err := oc.rdb.Del(ctx, orderKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate order %s: %w", orderID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OrderCache = (*OrderCache)(nil)
