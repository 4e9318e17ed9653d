package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerlabs/dexrouter/internal/domain"
)

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{MaxAttempts: 3, BackoffBase: 5 * time.Millisecond}
}

func payload(id string) domain.OrderPayload {
	return domain.OrderPayload{
		OrderID:           id,
		Pair:              "SOL/USDC",
		Side:              domain.OrderSideBuy,
		Amount:            10,
		SlippageTolerance: 0.05,
	}
}

func TestMemoryQueueEnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(testPolicy())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-1", job.OrderID)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "SOL/USDC", job.Payload.Pair)

	require.NoError(t, q.Ack(ctx, job))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueueIdempotentEnqueue(t *testing.T) {
	q := NewMemoryQueue(testPolicy())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))
	require.NoError(t, q.Enqueue(ctx, payload("order-1")))
	assert.Equal(t, 1, q.Len())

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, job))

	// Only one delivery happened.
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueRetryRedeliversWithIncrementedAttempt(t *testing.T) {
	q := NewMemoryQueue(testPolicy())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, job.Attempt)

	require.NoError(t, q.Retry(ctx, job))

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	redelivered, err := q.Dequeue(ctx2)
	require.NoError(t, err)
	assert.Equal(t, "order-1", redelivered.OrderID)
	assert.Equal(t, 2, redelivered.Attempt)
}

func TestMemoryQueueRetryAfterAckIsDropped(t *testing.T) {
	q := NewMemoryQueue(testPolicy())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, job))

	assert.Error(t, q.Retry(ctx, job))
}

func TestMemoryQueueDequeueBlocksUntilCancelled(t *testing.T) {
	q := NewMemoryQueue(testPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueBackoffSpacing(t *testing.T) {
	policy := domain.RetryPolicy{MaxAttempts: 3, BackoffBase: 40 * time.Millisecond}
	q := NewMemoryQueue(policy)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, q.Retry(ctx, job))

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = q.Dequeue(ctx2)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestMemoryQueueRetryWaitsForFullChannel(t *testing.T) {
	// A single-slot ready channel forces the redelivery to contend with a
	// waiting job.
	q := &MemoryQueue{
		policy: testPolicy(),
		jobs:   make(map[string]*domain.Job),
		ready:  make(chan string, 1),
	}
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, payload("order-1")))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// Occupy the only slot so the backoff timer fires against a full
	// channel.
	require.NoError(t, q.Enqueue(ctx, payload("order-2")))
	require.NoError(t, q.Retry(ctx, job))
	time.Sleep(20 * time.Millisecond)

	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-2", next.OrderID)

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	redelivered, err := q.Dequeue(ctx2)
	require.NoError(t, err)
	assert.Equal(t, "order-1", redelivered.OrderID)
	assert.Equal(t, 2, redelivered.Attempt)
}
