package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/routerlabs/dexrouter/internal/domain"
)

// memoryCapacity bounds the ready channel of a MemoryQueue.
const memoryCapacity = 1024

// MemoryQueue implements domain.JobQueue in process memory with the same
// semantics as RedisQueue: idempotent enqueue keyed by order id, at most one
// active consumer per job, and delayed redelivery per the retry policy. It
// backs tests and the standalone dev mode; it is not durable across
// restarts.
type MemoryQueue struct {
	policy domain.RetryPolicy

	mu   sync.Mutex
	jobs map[string]*domain.Job

	ready chan string
}

// NewMemoryQueue creates an empty MemoryQueue with the given retry policy.
func NewMemoryQueue(policy domain.RetryPolicy) *MemoryQueue {
	return &MemoryQueue{
		policy: policy,
		jobs:   make(map[string]*domain.Job),
		ready:  make(chan string, memoryCapacity),
	}
}

// Enqueue registers a job for the payload's order. Re-submitting an order
// that is already queued or in flight is a silent no-op.
func (q *MemoryQueue) Enqueue(ctx context.Context, payload domain.OrderPayload) error {
	q.mu.Lock()
	if _, exists := q.jobs[payload.OrderID]; exists {
		q.mu.Unlock()
		return nil
	}
	q.jobs[payload.OrderID] = &domain.Job{
		OrderID: payload.OrderID,
		Payload: payload,
		Attempt: 0,
		Policy:  q.policy,
	}
	q.mu.Unlock()

	select {
	case q.ready <- payload.OrderID:
		return nil
	default:
		q.mu.Lock()
		delete(q.jobs, payload.OrderID)
		q.mu.Unlock()
		return fmt.Errorf("queue: enqueue %s: queue full", payload.OrderID)
	}
}

// Dequeue blocks until a job is ready or the context is cancelled. The
// returned job is a copy; the queue keeps the authoritative attempt count.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case id := <-q.ready:
			q.mu.Lock()
			job, ok := q.jobs[id]
			if !ok {
				// Acked while waiting on the ready channel.
				q.mu.Unlock()
				continue
			}
			job.Attempt++
			job.DeliveredAt = time.Now().UTC()
			out := *job
			q.mu.Unlock()
			return &out, nil
		}
	}
}

// Ack removes a finished job.
func (q *MemoryQueue) Ack(ctx context.Context, job *domain.Job) error {
	q.mu.Lock()
	delete(q.jobs, job.OrderID)
	q.mu.Unlock()
	return nil
}

// Retry schedules the job for redelivery after the policy backoff for the
// attempt that just failed.
func (q *MemoryQueue) Retry(ctx context.Context, job *domain.Job) error {
	q.mu.Lock()
	stored, ok := q.jobs[job.OrderID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("queue: retry %s: %w", job.OrderID, domain.ErrNotFound)
	}
	stored.Attempt = job.Attempt
	delay := stored.Policy.Backoff(job.Attempt)
	q.mu.Unlock()

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		_, live := q.jobs[job.OrderID]
		q.mu.Unlock()
		if !live {
			return
		}
		// The redelivery must not be lost when the ready channel is
		// momentarily full; the timer goroutine waits for a consumer to
		// drain a slot.
		q.ready <- job.OrderID
	})
	return nil
}

// Len reports the number of jobs known to the queue (waiting, delayed, or in
// flight).
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Compile-time interface check.
var _ domain.JobQueue = (*MemoryQueue)(nil)
