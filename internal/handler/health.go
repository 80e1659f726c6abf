package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/openwiki/internal/apperror"
)

// Pinger is anything that can report whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the diagnostic endpoints.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleTest is a liveness probe.
//
// HTTP: GET /api/test
func (h *HealthHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API is working",
	})
}

// HandleTestDB checks the store with a short deadline.
//
// HTTP: GET /api/test/db
func (h *HealthHandler) HandleTestDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeError(w, h.logger, apperror.PersistenceFailed("reach the database", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Database connection successful",
	})
}
