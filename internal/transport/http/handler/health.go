package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type connectionStats interface {
	Users() int
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	stats connectionStats
}

func NewHealthHandler(stats connectionStats) *HealthHandler { return &HealthHandler{stats: stats} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "realtime":
		writeJSON(w, http.StatusOK, map[string]int{"connected_users": h.stats.Users()})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
