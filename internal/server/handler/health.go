package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint, reporting the state of the
// backing stores.
type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Either pinger may be nil when the
// corresponding backend is not wired (for example in worker-only mode tests).
func NewHealthHandler(postgres, redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis, logger: logger}
}

// HealthCheck responds with the status of each backing service.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, 2)

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("service", name),
				slog.String("error", err.Error()),
			)
			return
		}
		checks[name] = "ok"
	}

	check("postgres", h.postgres)
	check("redis", h.redis)

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":    overall,
		"services":  checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
