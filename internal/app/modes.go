package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/routerlabs/dexrouter/internal/router"
	"github.com/routerlabs/dexrouter/internal/server"
	"github.com/routerlabs/dexrouter/internal/server/handler"
	"github.com/routerlabs/dexrouter/internal/server/ws"
	"github.com/routerlabs/dexrouter/internal/service"
	"github.com/routerlabs/dexrouter/internal/venue"
	"github.com/routerlabs/dexrouter/internal/worker"
)

// shutdownGrace bounds how long the HTTP server may drain on shutdown.
const shutdownGrace = 10 * time.Second

// APIMode serves the HTTP and websocket API without running workers. Jobs
// enqueued here are picked up by a separate worker process sharing the same
// Redis.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	g, ctx := errgroup.WithContext(ctx)
	hub := ws.NewHub(a.logger)
	a.startServer(ctx, g, deps, hub)
	return g.Wait()
}

// WorkerMode runs the execution worker pool and the delayed-job promoter
// without the HTTP API.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	hub := ws.NewHub(a.logger)
	a.startWorkers(ctx, g, deps, hub)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the worker pool in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	hub := ws.NewHub(a.logger)
	a.startServer(ctx, g, deps, hub)
	a.startWorkers(ctx, g, deps, hub)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// startServer builds the service and HTTP server and registers its goroutines
// on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	if !a.cfg.Server.Enabled {
		return
	}

	orderSvc := service.NewOrderService(deps.OrderStore, deps.OrderCache, deps.Queue, a.logger)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.PgClient, deps.RedisClient, a.logger),
		Orders: handler.NewOrderHandler(orderSvc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		RateLimit:       a.cfg.Router.RateLimit,
		RateLimitWindow: a.cfg.Router.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startWorkers builds the venues, aggregator, execution simulator, and worker
// pool, and registers the pool and the queue promoter on the group.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	venues := []router.QuoteSource{
		venue.NewRaydium(),
		venue.NewMeteora(),
	}
	agg := router.NewAggregator(venues, a.cfg.Router.MinQuotes, a.logger)
	exec := router.NewSimulator(a.logger)

	pool := worker.NewPool(
		deps.Queue,
		agg,
		exec,
		deps.OrderStore,
		deps.OrderCache,
		hub,
		a.cfg.Queue.Concurrency,
		a.logger,
	).WithNotifier(deps.Notifier)

	g.Go(func() error {
		return pool.Run(ctx)
	})

	g.Go(func() error {
		return deps.Queue.Run(ctx)
	})
}

// startArchiver registers the periodic cold-storage archival loop when
// archiving is configured.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				n, err := deps.Archiver.ArchiveOrders(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archive orders failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if n > 0 {
					a.logger.InfoContext(ctx, "archived orders",
						slog.Int("count", n),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}
