package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aidar/team-requests-service/internal/middleware"
)

// StatsHandler обрабатывает эндпоинты статистики
type StatsHandler struct {
	statsService StatsService
}

// NewStatsHandler создает новый StatsHandler
func NewStatsHandler(statsService StatsService) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// GetStats обрабатывает GET /api/v1/campus/{campus_code}/requests/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())

	stats, err := h.statsService.GetStats(r.Context(), identity, chi.URLParam(r, "campus_code"))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, stats)
}
