package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tylerle0/InvestAnalytics/pkg/database"
)

// HealthChecker reports database health. *database.DB implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// HealthHandler serves GET /health
type HealthHandler struct {
	db      HealthChecker
	service string
}

// NewHealthHandler creates a health handler; db may be nil
func NewHealthHandler(db HealthChecker, service string) *HealthHandler {
	return &HealthHandler{db: db, service: service}
}

// ServeHTTP reports ok, or 503 when the database is unreachable
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": h.service,
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, err := h.db.HealthCheck(ctx)
		body["database"] = status
		if err != nil {
			body["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	respondJSON(w, http.StatusOK, body)
}
