// Package queue implements the durable order-execution job queue. The
// primary implementation runs on Redis: a wait list feeds consumers, an
// active list tracks in-flight jobs, and a delayed sorted set holds jobs
// awaiting a retry backoff. Job identity equals order identity, which makes
// enqueueing idempotent and guarantees at most one active consumer per
// order.
package queue

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/routerlabs/dexrouter/internal/domain"
)

//go:embed scripts/promote_due.lua
var promoteDueLua string

const (
	// dequeueBlock bounds each blocking pop so the consumer can observe
	// context cancellation.
	dequeueBlock = time.Second

	// promoteBatch caps how many due jobs one promotion pass moves.
	promoteBatch = 100

	defaultPromoteInterval = 250 * time.Millisecond

	// stallTimeout is how long a job may sit on the active list before the
	// promoter assumes its consumer died and returns it to the wait list.
	// It must comfortably exceed one full attempt (quote fetch plus the
	// simulated execution delay).
	stallTimeout = 30 * time.Second
)

// RedisQueue implements domain.JobQueue on Redis.
type RedisQueue struct {
	rdb             *redis.Client
	name            string
	policy          domain.RetryPolicy
	promoteSc       *redis.Script
	promoteInterval time.Duration
	logger          *slog.Logger
}

// NewRedisQueue creates a RedisQueue named name with the given retry policy.
// Call Run in a goroutine to start the delayed-job promoter.
func NewRedisQueue(rdb *redis.Client, name string, policy domain.RetryPolicy, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		rdb:             rdb,
		name:            name,
		policy:          policy,
		promoteSc:       redis.NewScript(promoteDueLua),
		promoteInterval: defaultPromoteInterval,
		logger:          logger.With(slog.String("component", "queue"), slog.String("queue", name)),
	}
}

// WithPromoteInterval overrides how often the promoter scans for due delayed
// jobs.
func (q *RedisQueue) WithPromoteInterval(d time.Duration) *RedisQueue {
	if d > 0 {
		q.promoteInterval = d
	}
	return q
}

func (q *RedisQueue) waitKey() string    { return "queue:" + q.name + ":wait" }
func (q *RedisQueue) activeKey() string  { return "queue:" + q.name + ":active" }
func (q *RedisQueue) delayedKey() string { return "queue:" + q.name + ":delayed" }
func (q *RedisQueue) jobKey(id string) string {
	return "queue:" + q.name + ":job:" + id
}

// Enqueue registers a job for the payload's order and pushes it onto the
// wait list. The job record is created with SETNX so re-submitting an order
// that is already queued or in flight is a silent no-op.
func (q *RedisQueue) Enqueue(ctx context.Context, payload domain.OrderPayload) error {
	job := domain.Job{
		OrderID: payload.OrderID,
		Payload: payload,
		Attempt: 0,
		Policy:  q.policy,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", payload.OrderID, err)
	}

	created, err := q.rdb.SetNX(ctx, q.jobKey(payload.OrderID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", payload.OrderID, err)
	}
	if !created {
		q.logger.DebugContext(ctx, "duplicate enqueue ignored",
			slog.String("order_id", payload.OrderID),
		)
		return nil
	}

	if err := q.rdb.LPush(ctx, q.waitKey(), payload.OrderID).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", payload.OrderID, err)
	}
	return nil
}

// Dequeue blocks until a job is available, moves it onto the active list,
// and returns it with the attempt counter durably incremented.
func (q *RedisQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := q.rdb.BRPopLPush(ctx, q.waitKey(), q.activeKey(), dequeueBlock).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("queue: dequeue: %w", err)
		}

		job, err := q.loadJob(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Orphaned list entry; drop it and keep consuming.
				_ = q.rdb.LRem(ctx, q.activeKey(), 1, id).Err()
				continue
			}
			return nil, err
		}

		job.Attempt++
		job.DeliveredAt = time.Now().UTC()
		if err := q.storeJob(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
}

// Ack removes a finished job from the active list and deletes its record.
func (q *RedisQueue) Ack(ctx context.Context, job *domain.Job) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, job.OrderID)
	pipe.Del(ctx, q.jobKey(job.OrderID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: ack %s: %w", job.OrderID, err)
	}
	return nil
}

// Retry moves the job from the active list onto the delayed set, due after
// the policy backoff for the attempt that just failed.
func (q *RedisQueue) Retry(ctx context.Context, job *domain.Job) error {
	if err := q.storeJob(ctx, job); err != nil {
		return err
	}

	due := time.Now().Add(job.Policy.Backoff(job.Attempt))

	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, job.OrderID)
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: job.OrderID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: retry %s: %w", job.OrderID, err)
	}

	q.logger.InfoContext(ctx, "job scheduled for retry",
		slog.String("order_id", job.OrderID),
		slog.Int("attempt", job.Attempt),
		slog.Time("due", due),
	)
	return nil
}

// Run drives the delayed-job promoter until the context is cancelled. Due
// jobs are moved back onto the wait list atomically via a Lua script, and
// active-list entries whose consumer went quiet past the stall timeout are
// reclaimed for redelivery.
func (q *RedisQueue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.promoteInterval)
	defer ticker.Stop()

	reclaim := time.NewTicker(stallTimeout / 2)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reclaim.C:
			q.reclaimStalled(ctx)
		case <-ticker.C:
			now := time.Now().UnixMilli()
			n, err := q.promoteSc.Run(ctx, q.rdb,
				[]string{q.delayedKey(), q.waitKey()},
				now, promoteBatch,
			).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				q.logger.ErrorContext(ctx, "promote delayed jobs failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if n > 0 {
				q.logger.DebugContext(ctx, "promoted delayed jobs", slog.Int64("count", n))
			}
		}
	}
}

// reclaimStalled returns stalled active-list entries to the wait list. A
// reclaimed job is redelivered as a fresh attempt; workers already drop
// redeliveries for orders that reached a terminal status, so a consumer
// that was merely slow rather than dead causes no duplicate effects.
func (q *RedisQueue) reclaimStalled(ctx context.Context) {
	ids, err := q.rdb.LRange(ctx, q.activeKey(), 0, -1).Result()
	if err != nil {
		q.logger.ErrorContext(ctx, "scan active list failed",
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now()
	for _, id := range ids {
		job, err := q.loadJob(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Orphaned list entry; the job record is gone.
				_ = q.rdb.LRem(ctx, q.activeKey(), 1, id).Err()
			}
			continue
		}
		if !stalled(job, now, stallTimeout) {
			continue
		}

		pipe := q.rdb.TxPipeline()
		pipe.LRem(ctx, q.activeKey(), 1, id)
		pipe.LPush(ctx, q.waitKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			q.logger.ErrorContext(ctx, "reclaim stalled job failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}

		q.logger.WarnContext(ctx, "reclaimed stalled job",
			slog.String("order_id", id),
			slog.Int("attempt", job.Attempt),
		)
	}
}

// stalled reports whether an in-flight job's last delivery is old enough to
// assume its consumer is gone. Jobs never delivered are left alone.
func stalled(job *domain.Job, now time.Time, timeout time.Duration) bool {
	if job.DeliveredAt.IsZero() {
		return false
	}
	return now.Sub(job.DeliveredAt) > timeout
}

func (q *RedisQueue) loadJob(ctx context.Context, id string) (*domain.Job, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("queue: load job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) storeJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.OrderID, err)
	}
	if err := q.rdb.Set(ctx, q.jobKey(job.OrderID), data, 0).Err(); err != nil {
		return fmt.Errorf("queue: store job %s: %w", job.OrderID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.JobQueue = (*RedisQueue)(nil)
