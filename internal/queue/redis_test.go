package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/routerlabs/dexrouter/internal/domain"
)

func TestStalledDetection(t *testing.T) {
	now := time.Now()

	overdue := &domain.Job{OrderID: "order-1", DeliveredAt: now.Add(-time.Minute)}
	assert.True(t, stalled(overdue, now, 30*time.Second))

	inFlight := &domain.Job{OrderID: "order-2", DeliveredAt: now.Add(-time.Second)}
	assert.False(t, stalled(inFlight, now, 30*time.Second))

	// A job that was never handed to a consumer is not reclaimable.
	waiting := &domain.Job{OrderID: "order-3"}
	assert.False(t, stalled(waiting, now, 30*time.Second))
}

func TestQueueKeyNamespacing(t *testing.T) {
	q := &RedisQueue{name: "orders"}

	assert.Equal(t, "queue:orders:wait", q.waitKey())
	assert.Equal(t, "queue:orders:active", q.activeKey())
	assert.Equal(t, "queue:orders:delayed", q.delayedKey())
	assert.Equal(t, "queue:orders:job:abc", q.jobKey("abc"))
}
