package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"rentdesk/internal/maintenance"
	"rentdesk/models"
)

type statusRequest struct {
	Status models.JobStatus    `json:"status"`
	Cost   decimal.NullDecimal `json:"cost"`
}

// GetJobsHandler возвращает работы пользователя; ?status= фильтрует по статусу
func (h *Handler) GetJobsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))

	jobs, err := h.Service.ListJobs(r.Context(), UserID(r.Context()), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var in maintenance.JobInput
	if err := decodeBody(w, r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.Service.CreateJob(r.Context(), UserID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := h.Service.GetJob(r.Context(), UserID(r.Context()), chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateJobStatusHandler обрабатывает PUT /api/maintenance-jobs/{jobId}/status
func (h *Handler) UpdateJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Status == "" {
		http.Error(w, "Missing status", http.StatusBadRequest)
		return
	}

	job, err := h.Service.UpdateJobStatus(r.Context(), UserID(r.Context()), chi.URLParam(r, "jobId"),
		body.Status, maintenance.StatusExtra{Cost: body.Cost})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := h.Service.CancelJob(r.Context(), UserID(r.Context()), chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) DeleteJobHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteJob(r.Context(), UserID(r.Context()), chi.URLParam(r, "jobId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
