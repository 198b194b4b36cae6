package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter настраивает маршруты HTTP API
func NewRouter(requests *RequestHandler, stats *StatsHandler, auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	// Глобальные middleware (применяются ко всем запросам)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Защищенные эндпоинты (требуют JWT токен в заголовке Authorization)
	r.Route("/api/v1/campus/{campus_code}/requests", func(r chi.Router) {
		r.Use(auth)

		r.Get("/", requests.List)
		r.Post("/", requests.Create)
		r.Get("/stats", stats.GetStats)
		r.Get("/{request_id}", requests.Get)
		r.Put("/{request_id}", requests.Review)
	})

	return r
}
