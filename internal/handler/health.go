package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Pinger is the part of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DBHealth is the last database check, as reported by GET /api/health.
type DBHealth struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// HealthHandler pings the database and remembers the outcome. The healthy
// flag is the only process-wide state besides the connection pool.
type HealthHandler struct {
	responder
	db      Pinger
	healthy atomic.Bool
	now     func() time.Time
}

func NewHealthHandler(db Pinger, logger *slog.Logger, production bool) *HealthHandler {
	return &HealthHandler{
		responder: responder{logger: logger, production: production},
		db:        db,
		now:       time.Now,
	}
}

// Check pings the database and records the result.
func (h *HealthHandler) Check(ctx context.Context) DBHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res := DBHealth{CheckedAt: h.now().UTC()}
	if err := h.db.Ping(ctx); err != nil {
		res.Error = "Database unreachable."
		if !h.production {
			res.Error = err.Error()
		}
		if h.healthy.Load() {
			h.logger.Warn("database became unhealthy", slog.String("error", err.Error()))
		}
	} else {
		res.Healthy = true
	}
	h.healthy.Store(res.Healthy)
	return res
}

// Healthy reports the outcome of the last check.
func (h *HealthHandler) Healthy() bool {
	return h.healthy.Load()
}

// HandleHealth runs a fresh check.
//
// HTTP: GET /api/health → 200, or 503 when the database does not answer
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	db := h.Check(r.Context())

	status, msg := http.StatusOK, "Iron Forge API is running."
	if !db.Healthy {
		status, msg = http.StatusServiceUnavailable, "API running, DB unavailable."
	}
	writeJSON(w, status, envelope{
		"success": db.Healthy,
		"message": msg,
		"db":      db,
		"ts":      h.now().UTC().Format(time.RFC3339Nano),
	})
}
