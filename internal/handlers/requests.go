package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"rentdesk/internal/maintenance"
)

// GetPendingRequestsHandler возвращает очередь заявок PENDING по объектам пользователя
func (h *Handler) GetPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Service.PendingRequests(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.Service.GetRequest(r.Context(), UserID(r.Context()), chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ApproveRequestHandler создает работы из заявки. Тело с переопределениями необязательно.
func (h *Handler) ApproveRequestHandler(w http.ResponseWriter, r *http.Request) {
	var overrides maintenance.ApproveOverrides
	if err := decodeBody(w, r, &overrides); err != nil && !errors.Is(err, errEmptyBody) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.Service.Approve(r.Context(), UserID(r.Context()), chi.URLParam(r, "requestId"), overrides)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) RejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.Service.Reject(r.Context(), UserID(r.Context()), chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	req, err := h.Service.Cancel(r.Context(), UserID(r.Context()), chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
