package domain

import (
	"context"
	"time"
)

// OrderPayload is the working snapshot of an order carried by a queue job.
// The persisted order record in the store remains the source of truth; the
// payload only holds what the worker needs to drive one execution.
type OrderPayload struct {
	OrderID           string    `json:"order_id"`
	Pair              string    `json:"pair"`
	Side              OrderSide `json:"side"`
	Amount            float64   `json:"amount"`
	SlippageTolerance float64   `json:"slippage_tolerance"`
}

// RetryPolicy bounds the attempts for a job and spaces them with exponential
// backoff: base, 2*base, 4*base, ...
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BackoffBase time.Duration `json:"backoff_base"`
}

// Backoff returns the delay before redelivery after the given attempt
// (1-based). Attempt 1 waits base, attempt 2 waits 2*base, and so on.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Job is a single order-execution task. Its identity equals the order ID,
// which makes enqueueing idempotent. Attempt is 1-based and incremented by
// the queue on every delivery.
type Job struct {
	OrderID string       `json:"order_id"`
	Payload OrderPayload `json:"payload"`
	Attempt int          `json:"attempt"`
	Policy  RetryPolicy  `json:"policy"`

	// DeliveredAt records when the queue last handed the job to a
	// consumer. Stall detection compares it against the current time.
	DeliveredAt time.Time `json:"delivered_at"`
}

// LastAttempt reports whether the retry budget is exhausted after this
// delivery.
func (j *Job) LastAttempt() bool {
	return j.Attempt >= j.Policy.MaxAttempts
}

// JobQueue is a durable, at-least-once work queue of order-execution jobs.
// Implementations must be safe for concurrent use by the configured worker
// concurrency and must deliver a given job to at most one consumer at a time.
type JobQueue interface {
	// Enqueue adds a job for the payload's order. Enqueueing an order ID
	// that is already queued or in flight is a silent no-op.
	Enqueue(ctx context.Context, payload OrderPayload) error

	// Dequeue blocks until a job is available or the context is cancelled.
	// The delivered job's Attempt is already incremented.
	Dequeue(ctx context.Context) (*Job, error)

	// Ack removes a finished job. Called after success and after the final
	// failed attempt.
	Ack(ctx context.Context, job *Job) error

	// Retry schedules the job for redelivery after its policy's backoff for
	// the current attempt.
	Retry(ctx context.Context, job *Job) error
}
