package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes собирает роутер API
func Routes(h *Handler, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Logger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			// заявки
			r.Get("/maintenance-requests/pending", h.GetPendingRequestsHandler)
			r.Get("/maintenance-requests/{requestId}", h.GetRequestHandler)
			r.Put("/maintenance-requests/{requestId}/approve", h.ApproveRequestHandler)
			r.Put("/maintenance-requests/{requestId}/reject", h.RejectRequestHandler)
			r.Put("/maintenance-requests/{requestId}/cancel", h.CancelRequestHandler)

			// работы
			r.Get("/maintenance-jobs", h.GetJobsHandler)
			r.Post("/maintenance-jobs", h.CreateJobHandler)
			r.Get("/maintenance-jobs/{jobId}", h.GetJobHandler)
			r.Put("/maintenance-jobs/{jobId}/status", h.UpdateJobStatusHandler)
			r.Put("/maintenance-jobs/{jobId}/cancel", h.CancelJobHandler)
			r.Delete("/maintenance-jobs/{jobId}", h.DeleteJobHandler)

			// живые списки
			r.Get("/ws/maintenance-requests/pending", h.StreamPendingRequestsHandler)
			r.Get("/ws/maintenance-jobs", h.StreamJobsHandler)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})
	return r
}
