package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health reports per-dependency status. Returns 503 when any check fails so
// load balancers can act on the status code alone.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	status := "ok"
	code := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		checks["database"] = err.Error()
		status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if err := h.redis.Health(ctx); err != nil {
		checks["redis"] = err.Error()
		status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		checks["redis"] = "ok"
	}

	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}

// Ready reports whether the server can serve traffic. Postgres is the only
// hard dependency; rate limiting degrades without Redis but requests still
// work.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Live reports that the process is running.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
