// Package worker consumes order-execution jobs from the queue and drives
// each order through routing, quoting, simulated execution, and a terminal
// status, emitting a status event for every step.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/routerlabs/dexrouter/internal/domain"
	"github.com/routerlabs/dexrouter/internal/router"
)

// Quoter fetches quotes for a pair across all venues.
type Quoter interface {
	FetchQuotes(ctx context.Context, pair string) ([]domain.Quote, error)
}

// Executor simulates submitting an order against a selected quote.
type Executor interface {
	Execute(ctx context.Context, payload domain.OrderPayload, quote domain.Quote) (domain.ExecutionResult, error)
}

// EventSink receives status events for live subscribers. Delivery is
// best-effort and must never block order processing.
type EventSink interface {
	Send(orderID string, event domain.StatusEvent)
}

// TerminalNotifier is told when an order reaches a terminal status, for
// operator alerting. Optional.
type TerminalNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// statusRank orders the forward pipeline stages so replayed attempts never
// regress the persisted status.
var statusRank = map[domain.OrderStatus]int{
	domain.OrderStatusPending:   0,
	domain.OrderStatusRouting:   1,
	domain.OrderStatusBuilding:  2,
	domain.OrderStatusSubmitted: 3,
}

// Pool is a bounded-concurrency consumer of the job queue. Each worker owns
// exactly one order at a time; the queue and the event sink are the only
// state shared across workers.
type Pool struct {
	queue       domain.JobQueue
	quoter      Quoter
	exec        Executor
	store       domain.OrderStore
	cache       domain.OrderCache
	sink        EventSink
	notifier    TerminalNotifier
	concurrency int
	logger      *slog.Logger
}

// NewPool creates a worker pool with the given concurrency.
func NewPool(
	queue domain.JobQueue,
	quoter Quoter,
	exec Executor,
	store domain.OrderStore,
	cache domain.OrderCache,
	sink EventSink,
	concurrency int,
	logger *slog.Logger,
) *Pool {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Pool{
		queue:       queue,
		quoter:      quoter,
		exec:        exec,
		store:       store,
		cache:       cache,
		sink:        sink,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "worker")),
	}
}

// WithNotifier attaches an operator notifier for terminal order events.
func (p *Pool) WithNotifier(n TerminalNotifier) *Pool {
	p.notifier = n
	return p
}

// Run starts the consumers and blocks until the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "worker pool started", slog.Int("concurrency", p.concurrency))
	defer p.logger.Info("worker pool stopped")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		g.Go(func() error {
			return p.consume(ctx)
		})
	}
	return g.Wait()
}

// consume is one worker's loop: dequeue, process, then ack or reschedule.
func (p *Pool) consume(ctx context.Context) error {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.ErrorContext(ctx, "dequeue failed", slog.String("error", err.Error()))
			continue
		}

		p.logger.InfoContext(ctx, "processing order",
			slog.String("order_id", job.OrderID),
			slog.Int("attempt", job.Attempt),
			slog.Int("max_attempts", job.Policy.MaxAttempts),
		)

		procErr := p.process(ctx, job)
		if procErr == nil {
			if err := p.queue.Ack(ctx, job); err != nil {
				p.logger.ErrorContext(ctx, "ack failed",
					slog.String("order_id", job.OrderID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		// A cancelled context aborts the attempt without consuming retry
		// budget; the job stays with the queue for redelivery.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.logger.WarnContext(ctx, "attempt failed",
			slog.String("order_id", job.OrderID),
			slog.Int("attempt", job.Attempt),
			slog.String("error", procErr.Error()),
		)

		if job.LastAttempt() {
			p.finalize(ctx, job, procErr)
			if err := p.queue.Ack(ctx, job); err != nil {
				p.logger.ErrorContext(ctx, "ack failed",
					slog.String("order_id", job.OrderID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if err := p.queue.Retry(ctx, job); err != nil {
			p.logger.ErrorContext(ctx, "retry scheduling failed",
				slog.String("order_id", job.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// process drives one attempt. A nil return means the order confirmed; any
// error is an attempt-level (retryable) failure, escalated to a terminal
// failure by the caller once the retry budget is exhausted.
func (p *Pool) process(ctx context.Context, job *domain.Job) error {
	rec, err := p.store.GetByID(ctx, job.OrderID)
	if err != nil {
		return fmt.Errorf("worker: load order %s: %w", job.OrderID, err)
	}
	ord := rec.Order

	// Redelivery of an already-finalized order is acked without effect.
	if ord.Status.Terminal() {
		p.logger.WarnContext(ctx, "order already terminal, dropping job",
			slog.String("order_id", ord.ID),
			slog.String("status", string(ord.Status)),
		)
		return nil
	}

	if err := p.advance(ctx, &ord, domain.OrderStatusRouting, domain.OrderUpdate{}, nil); err != nil {
		return err
	}

	quotes, err := p.quoter.FetchQuotes(ctx, job.Payload.Pair)
	if err != nil {
		return err
	}
	best, err := router.SelectBest(quotes, job.Payload.Side)
	if err != nil {
		return err
	}

	buildUpdate := domain.OrderUpdate{Venue: &best.Venue, QuotedPrice: &best.Price}
	buildPayload := map[string]any{"venue": best.Venue, "price": best.Price}
	if err := p.advance(ctx, &ord, domain.OrderStatusBuilding, buildUpdate, buildPayload); err != nil {
		return err
	}

	if err := p.advance(ctx, &ord, domain.OrderStatusSubmitted, domain.OrderUpdate{}, nil); err != nil {
		return err
	}

	res, err := p.exec.Execute(ctx, job.Payload, best)
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}

	confirmUpdate := domain.OrderUpdate{TxHash: &res.TxHash, ExecutedPrice: &res.ExecutedPrice}
	confirmPayload := map[string]any{"tx_hash": res.TxHash, "executed_price": res.ExecutedPrice}
	if err := p.advance(ctx, &ord, domain.OrderStatusConfirmed, confirmUpdate, confirmPayload); err != nil {
		return err
	}

	// Finalized orders are read from the store, not the cache.
	if err := p.cache.Invalidate(ctx, ord.ID); err != nil {
		p.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("order_id", ord.ID),
			slog.String("error", err.Error()),
		)
	}

	p.notifyTerminal(ctx, "order_confirmed", "Order confirmed",
		fmt.Sprintf("%s %s %s filled at %.4f (%s)", ord.ID, ord.Side, ord.Pair, res.ExecutedPrice, res.TxHash))

	return nil
}

// finalize records the terminal failed status after the last attempt. The
// failed transition is recorded at most once: a redelivered job whose order
// already finalized is skipped.
func (p *Pool) finalize(ctx context.Context, job *domain.Job, attemptErr error) {
	rec, err := p.store.GetByID(ctx, job.OrderID)
	if err != nil {
		p.logger.ErrorContext(ctx, "load order for finalize failed",
			slog.String("order_id", job.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}
	ord := rec.Order
	if ord.Status.Terminal() {
		return
	}

	msg := fmt.Errorf("%w: %v", domain.ErrRetriesExhausted, attemptErr).Error()
	update := domain.OrderUpdate{Error: &msg}
	payload := map[string]any{"error": msg}
	if err := p.advance(ctx, &ord, domain.OrderStatusFailed, update, payload); err != nil {
		p.logger.ErrorContext(ctx, "failed transition not recorded",
			slog.String("order_id", ord.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.cache.Invalidate(ctx, ord.ID); err != nil {
		p.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("order_id", ord.ID),
			slog.String("error", err.Error()),
		)
	}

	p.notifyTerminal(ctx, "order_failed", "Order failed",
		fmt.Sprintf("%s %s %s: %s (%d attempts)", ord.ID, ord.Side, ord.Pair, msg, job.Attempt))
}

// advance moves the order to the target status, persisting the transition
// before the event is pushed to subscribers. Re-reaching a stage the order
// already passed on a previous attempt updates fields and re-emits the event
// but appends no transition row, so the recorded history always steps
// forward one hop at a time.
func (p *Pool) advance(ctx context.Context, ord *domain.Order, to domain.OrderStatus, update domain.OrderUpdate, payload map[string]any) error {
	replay := !to.Terminal() && statusRank[ord.Status] >= statusRank[to]

	if replay {
		if err := p.store.UpdateStatus(ctx, ord.ID, ord.Status, update); err != nil {
			return fmt.Errorf("worker: update order %s: %w", ord.ID, err)
		}
	} else {
		if !domain.CanTransition(ord.Status, to) {
			return fmt.Errorf("worker: order %s: %s -> %s: %w",
				ord.ID, ord.Status, to, domain.ErrIllegalTransition)
		}
		if err := p.store.UpdateStatus(ctx, ord.ID, to, update); err != nil {
			return fmt.Errorf("worker: update order %s: %w", ord.ID, err)
		}
		if err := p.store.AppendTransition(ctx, domain.StatusTransition{
			OrderID:   ord.ID,
			FromState: ord.Status,
			ToState:   to,
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("worker: append transition %s: %w", ord.ID, err)
		}
		ord.Status = to
	}

	event := domain.StatusEvent{
		OrderID:   ord.ID,
		Status:    to,
		Timestamp: time.Now().UTC(),
	}
	if update.Venue != nil {
		event.Venue = *update.Venue
	}
	if update.QuotedPrice != nil {
		event.Price = *update.QuotedPrice
	}
	if update.TxHash != nil {
		event.TxHash = *update.TxHash
	}
	if update.ExecutedPrice != nil {
		event.ExecutedPrice = *update.ExecutedPrice
	}
	if update.Error != nil {
		event.Error = *update.Error
	}
	p.sink.Send(ord.ID, event)

	return nil
}

// notifyTerminal forwards a terminal order event to the operator notifier,
// when one is attached.
func (p *Pool) notifyTerminal(ctx context.Context, event, title, message string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, event, title, message); err != nil {
		p.logger.WarnContext(ctx, "terminal notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
